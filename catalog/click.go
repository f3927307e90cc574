package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/session"
)

// clickStrategy is one way of clicking an element.
type clickStrategy struct {
	name  string
	click func(context.Context, session.Session, session.Ref) error
}

// clickStrategies are tried in order until one succeeds.
var clickStrategies = []clickStrategy{
	{"direct", func(ctx context.Context, s session.Session, r session.Ref) error { return s.Click(ctx, r) }},
	{"script", func(ctx context.Context, s session.Session, r session.Ref) error { return s.ScriptClick(ctx, r) }},
	{"pointer", func(ctx context.Context, s session.Session, r session.Ref) error { return s.PointerClick(ctx, r) }},
}

// SafeClick clicks r, falling back from a native click to a script click
// to a pointer move and click. It returns nil as soon as any strategy
// works. When all fail it returns a soft ErrCodeIntercepted error wrapping
// every attempt. A fatal session error stops the chain and is returned as is.
func SafeClick(ctx context.Context, s session.Session, r session.Ref) error {
	var errs []error
	for _, strategy := range clickStrategies {
		err := strategy.click(ctx, s, r)
		if err == nil {
			if len(errs) > 0 {
				slog.Debug("click recovered", "target", r.String(), "strategy", strategy.name, "failed", len(errs))
			}
			return nil
		}
		if models.IsFatal(err) {
			return err
		}
		errs = append(errs, err)
	}
	return models.NewCatalogError(models.ErrCodeIntercepted, "all click strategies failed on "+r.String(), errors.Join(errs...))
}
