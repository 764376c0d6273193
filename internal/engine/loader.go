package engine

import (
	"context"
	"sync"

	"github.com/Aman-CERP/contentidx/pkg/indexer"
)

// Content is file content whose bytes are reserved in a MemoryBudget until
// Release is called.
type Content struct {
	File   indexer.File
	Data   []byte
	Length int64

	release func()
	once    sync.Once
}

// Release returns the content's reservation. Calls after the first are
// no-ops.
func (c *Content) Release() {
	c.once.Do(func() {
		if c.release != nil {
			c.release()
		}
		c.Data = nil
	})
}

// ContentLoader reads file content under a MemoryBudget.
type ContentLoader struct {
	policy indexer.SizePolicy
	source indexer.ContentSource
	budget *MemoryBudget
}

func NewContentLoader(policy indexer.SizePolicy, source indexer.ContentSource, budget *MemoryBudget) *ContentLoader {
	return &ContentLoader{policy: policy, source: source, budget: budget}
}

// Load returns the content of f. Errors are the size policy rejection, a
// load failure wrapping the cause, or ctx.Err(). On error nothing stays
// reserved. On success the caller must call Release exactly once.
func (l *ContentLoader) Load(ctx context.Context, f indexer.File) (*Content, error) {
	if l.policy.IsTooLarge(f) {
		return nil, errTooLarge(f)
	}

	length, err := l.length(ctx, f)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errLoadFailed(f, err)
	}
	length = max(length, 0)

	if err := l.budget.Acquire(ctx, length); err != nil {
		return nil, err
	}

	data, err := l.read(ctx, f)
	if err != nil {
		l.budget.Release(length)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errLoadFailed(f, err)
	}

	return &Content{
		File:    f,
		Data:    data,
		Length:  length,
		release: func() { l.budget.Release(length) },
	}, nil
}

func (l *ContentLoader) length(ctx context.Context, f indexer.File) (n int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError("reading length of "+f.Path, r)
		}
	}()
	return l.source.Length(ctx, f)
}

func (l *ContentLoader) read(ctx context.Context, f indexer.File) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError("loading "+f.Path, r)
		}
	}()
	return l.source.Load(ctx, f)
}
