package scope

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagflow/pkg/errors"
)

func TestStackEnterExit(t *testing.T) {
	s := NewStack()
	assert.Nil(t, s.Current())

	require.NoError(t, s.Enter("outer"))
	require.NoError(t, s.Enter("inner"))

	cur := s.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "inner", cur.Name)
	assert.Equal(t, 2, cur.Depth)
	assert.Equal(t, 2, s.Depth(), "current must not pop")

	s.Exit()
	assert.Equal(t, "outer", s.Current().Name)
	assert.Equal(t, 1, s.Current().Depth)

	s.Exit()
	s.Exit()
	assert.Nil(t, s.Current())
	assert.Equal(t, 0, s.Depth())
}

func TestStackRejectsEmptyName(t *testing.T) {
	s := NewStack()
	err := s.Enter("")
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Equal(t, 0, s.Depth())
}

func TestScopedPopsOnEveryPath(t *testing.T) {
	s := NewStack()

	work := func(fail bool) error {
		exit, err := s.Scoped("work")
		require.NoError(t, err)
		defer exit()
		if fail {
			return errors.ErrInternal
		}
		return nil
	}

	assert.NoError(t, work(false))
	assert.Error(t, work(true))
	assert.Equal(t, 0, s.Depth())

	require.NoError(t, s.Enter("base"))
	exit, err := s.Scoped("twice")
	require.NoError(t, err)
	require.NoError(t, s.Enter("left open"))
	exit()
	assert.Equal(t, "base", s.Current().Name, "release unwinds scopes left open above it")
	exit()
	assert.Equal(t, 1, s.Depth(), "release runs once")
}

func TestReleaseAfterExitKeepsParent(t *testing.T) {
	tests := []struct {
		name  string
		pops  func(s *Stack, exit func())
		depth int
		top   string
	}{
		{
			name:  "exit then release",
			pops:  func(s *Stack, exit func()) { s.Exit(); exit() },
			depth: 1,
			top:   "parent",
		},
		{
			name:  "release then exit",
			pops:  func(s *Stack, exit func()) { exit(); s.Exit() },
			depth: 0,
		},
		{
			name:  "exit, push again, release",
			pops:  func(s *Stack, exit func()) { s.Exit(); _ = s.Enter("sibling"); exit() },
			depth: 2,
			top:   "sibling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStack()
			require.NoError(t, s.Enter("parent"))
			exit, err := s.Scoped("child")
			require.NoError(t, err)

			tt.pops(s, exit)

			assert.Equal(t, tt.depth, s.Depth())
			if tt.top != "" {
				assert.Equal(t, tt.top, s.Current().Name)
			}
		})
	}
}

func TestContextEnterIsolatesTasks(t *testing.T) {
	root, exitRoot, err := Enter(context.Background(), "request")
	require.NoError(t, err)
	defer exitRoot()

	var wg sync.WaitGroup
	depths := make([]int, 8)
	for i := range depths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, exit, err := Enter(root, "task")
			if err != nil {
				return
			}
			defer exit()
			depths[i] = Current(ctx).Depth
		}(i)
	}
	wg.Wait()

	for _, d := range depths {
		assert.Equal(t, 2, d)
	}
	assert.Equal(t, "request", Current(root).Name)
	assert.Equal(t, 1, FromContext(root).Depth())
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, Current(ctx))
	Exit(ctx)

	_, _, err := Enter(ctx, "")
	assert.True(t, errors.IsInvalidArgument(err))

	child, exit, err := Enter(ctx, "load")
	require.NoError(t, err)
	assert.Equal(t, "load", Current(child).Name)
	Exit(child)
	assert.Nil(t, Current(child))
	exit()
	assert.Nil(t, Current(child))
}

func TestContextExitThenRelease(t *testing.T) {
	parent, exitParent, err := Enter(context.Background(), "request")
	require.NoError(t, err)
	defer exitParent()

	child, exit, err := Enter(parent, "step")
	require.NoError(t, err)

	Exit(child)
	exit()
	exit()
	require.NotNil(t, Current(child))
	assert.Equal(t, "request", Current(child).Name)
	assert.Equal(t, 1, FromContext(child).Depth())
	assert.Equal(t, "request", Current(parent).Name)
}
