package policy

import "authzd/internal/authz/model"

// Match reports whether a stored permission covers a requested
// (resource, action, scope) tuple. All three segments must match; a stored
// segment of "*" matches anything. Wildcards never appear on the request
// side, so requested segments are compared literally.
func Match(stored model.Permission, resource, action, scope string) bool {
	return segmentMatch(stored.Resource, resource) &&
		segmentMatch(stored.Action, action) &&
		segmentMatch(stored.Scope, scope)
}

func segmentMatch(stored, requested string) bool {
	return stored == "*" || stored == requested
}
