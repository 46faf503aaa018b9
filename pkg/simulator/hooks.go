package simulator

import "github.com/aretw0/chatflow/pkg/domain"

// ChainHooks merges several hook sets; each event reaches every non-nil
// callback in argument order.
func ChainHooks(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnNodeEnter = chain(out.OnNodeEnter, h.OnNodeEnter)
		out.OnMessage = chain(out.OnMessage, h.OnMessage)
		out.OnReset = chain(out.OnReset, h.OnReset)
		out.OnTerminal = chain(out.OnTerminal, h.OnTerminal)
	}
	return out
}

func chain[E any](first, next func(E)) func(E) {
	switch {
	case first == nil:
		return next
	case next == nil:
		return first
	default:
		return func(e E) {
			first(e)
			next(e)
		}
	}
}
