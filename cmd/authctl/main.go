// Command authctl is the operator tool for the authentication server:
// it encrypts configuration secrets under the master key and mints and
// inspects API access keys.
package main

import "go.pilab.hu/authcore/cmd/authctl/cmd"

func main() {
	cmd.Execute()
}
