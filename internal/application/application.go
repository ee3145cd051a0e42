package application

import "context"

// UseCase is the single entry point of an application operation. Business rejections are
// reported through R where the operation has a closed set of outcomes; errors are reserved
// for invalid input and infrastructure faults.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// UseCaseFunc adapts a plain function to UseCase.
type UseCaseFunc[C any, R any] func(ctx context.Context, cmd C) (R, error)

func (f UseCaseFunc[C, R]) Execute(ctx context.Context, cmd C) (R, error) { return f(ctx, cmd) }
