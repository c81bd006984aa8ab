package httpauth

import (
	"net/http"

	"go.pilab.hu/authcore"
)

// Manager is a single authentication mechanism. A manager either decides
// the request (valid or invalid) or leaves it not validated for the next
// mechanism in the chain.
type Manager interface {
	ValidateAccessToken(w http.ResponseWriter, r *http.Request) authcore.Result
}

// Mechanism chains managers. The first decided result wins; a request no
// manager decides stays not validated.
type Mechanism struct {
	managers []Manager
}

// NewMechanism creates a chain over the given managers, consulted in order.
func NewMechanism(managers ...Manager) *Mechanism {
	return &Mechanism{managers: managers}
}

// ValidateAccessToken implements Manager.
func (m *Mechanism) ValidateAccessToken(w http.ResponseWriter, r *http.Request) authcore.Result {
	for _, manager := range m.managers {
		if result := manager.ValidateAccessToken(w, r); result.Status != authcore.StatusNotValidated {
			return result
		}
	}
	return authcore.NotValidated
}
