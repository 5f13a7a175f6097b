package authorization

import "context"

type Service interface {
	// Authorize checks whether actor, holding role, may perform action on object.
	Authorize(ctx context.Context, actor, role, object, action string) error
}
