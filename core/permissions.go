package core

// Permission is a single action label checked for membership in a token's
// permission claim, formatted verb:resource.
type Permission string

const (
	PermGetActors    Permission = "get:actors"
	PermGetMovies    Permission = "get:movies"
	PermPostActors   Permission = "post:actors"
	PermPostMovies   Permission = "post:movies"
	PermPatchActors  Permission = "patch:actors"
	PermPatchMovies  Permission = "patch:movies"
	PermDeleteActors Permission = "delete:actors"
	PermDeleteMovies Permission = "delete:movies"
)

// AllPermissions is every permission a casting route can require.
var AllPermissions = []Permission{
	PermGetActors,
	PermGetMovies,
	PermPostActors,
	PermPostMovies,
	PermPatchActors,
	PermPatchMovies,
	PermDeleteActors,
	PermDeleteMovies,
}

// Authorize allows the operation only if requirement is a member of the
// verified permission set. It holds no state; repeated calls with the
// same arguments return the same result.
func Authorize(requirement Permission, c Claims) error {
	if _, err := ExtractPermissions(c); err != nil {
		return err
	}
	if !c.HasPermission(requirement) {
		return ErrPermissionDenied
	}
	return nil
}
