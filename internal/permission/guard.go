package permission

import "github.com/8b-is/feedgate/internal/core"

// Require returns nil if perms grants capability, either directly or through the wildcard.
func Require(perms core.Permissions, capability string) error {
	if perms.Allows(capability) {
		return nil
	}
	return &core.PermissionDeniedError{Capability: capability}
}

// Capabilities required by the administrative surface.
const (
	AdminRead  = "admin.read"
	AdminWrite = "admin.write"
)

// DefaultAgentPermissions are granted to agents created without an explicit set.
var DefaultAgentPermissions = core.Permissions{"feedback.read", "feedback.submit"}
