package expr

import "context"

// Initialize binds every leaf under root to sensors, left to right. If any
// leaf fails, the leaves bound so far are released and the error returned.
func Initialize(ctx context.Context, root Node, sensors SensorCapability) error {
	leaves := Leaves(root)
	for i, leaf := range leaves {
		if err := leaf.bind(ctx, sensors); err != nil {
			for _, done := range leaves[:i] {
				done.unbind(ctx)
			}
			return err
		}
	}
	return nil
}

// Destroy releases every leaf under root. It is idempotent and may run
// concurrently with an evaluation, which then fails with ErrUnbound.
func Destroy(ctx context.Context, root Node) {
	for _, leaf := range Leaves(root) {
		leaf.unbind(ctx)
	}
}
