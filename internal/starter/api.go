package starter

import (
	"context"
	"fungily.io/fungily-score/internal/config"
	"fungily.io/fungily-score/pkg/log"
)

type Startable interface {
	Start(ctx context.Context)
}

type Configurable interface {
	Apply(*config.Configuration)
}

// Start applies the global configuration to every Configurable element and
// starts the elements in order.
func Start(ctx context.Context, elems ...Startable) {
	for _, ele := range elems {
		if configurable, ok := ele.(Configurable); ok && config.Global != nil {
			configurable.Apply(config.Global)
		}
		ele.Start(ctx)
	}
}

type Stopable interface {
	Stop()
}

// Stop stops elements in reverse start order.
func Stop(elems ...Startable) {
	for i := len(elems) - 1; i >= 0; i-- {
		if s, ok := elems[i].(Stopable); ok {
			log.Debugf("stopping %T", elems[i])
			s.Stop()
		}
	}
}
