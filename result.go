package authcore

// Status describes the outcome of a credential validation attempt.
type Status int

const (
	// StatusNotValidated means the manager did not find a credential it is
	// responsible for. Other managers in the chain may still validate the
	// request.
	StatusNotValidated Status = iota
	// StatusInvalid means a credential was present but rejected.
	StatusInvalid
	// StatusValid means the credential was accepted and the result carries
	// the authenticated principal.
	StatusValid
)

// RoleSystem is the role granted to requests authenticated with an API
// access key. Access keys convey no user roles of their own.
const RoleSystem = "system"

// Result is the outcome of a credential validation, together with the
// authenticated principal when the credential was accepted.
//
// Internal rejection reasons (expired, revoked, malformed) are for logs and
// metrics only and are deliberately not part of the result: every rejection
// surfaces uniformly as "unauthenticated" to the caller.
type Result struct {
	Status Status
	UserID string
	Roles  []string
}

// NotValidated is the result returned when no credential was found.
var NotValidated = Result{Status: StatusNotValidated}

// Invalid is the result returned when a credential was present but rejected.
var Invalid = Result{Status: StatusInvalid}

// ValidResult builds an accepted result for the given principal.
func ValidResult(userID string, roles []string) Result {
	return Result{Status: StatusValid, UserID: userID, Roles: roles}
}

// Valid reports whether the credential was accepted.
func (r Result) Valid() bool {
	return r.Status == StatusValid
}

// HasRole reports whether the authenticated principal holds the given role.
func (r Result) HasRole(role string) bool {
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}
