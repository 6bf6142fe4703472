package tenant

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bldgate/pkg/tenants"
)

type failingRegistry struct{ err error }

func (f failingRegistry) Lookup(context.Context, string) (tenants.Entry, error) {
	return tenants.Entry{}, f.err
}
func (f failingRegistry) ListActive(context.Context) ([]tenants.Entry, error) { return nil, f.err }

func testRegistry() *tenants.MemoryRegistry {
	return tenants.NewMemoryRegistry(nil,
		tenants.Entry{ID: "1", Code: "BLD01", SchemaName: "bld-01", Active: true},
		tenants.Entry{ID: "2", Code: "BLD02", SchemaName: "bld-02", Active: true},
		tenants.Entry{ID: "3", Code: "BLD03", SchemaName: "bld-03", Active: false},
	)
}

func TestSetSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("valid schema binds", func(t *testing.T) {
		c := NewContext(testRegistry())
		require.NoError(t, c.SetSchema(ctx, "bld-01"))
		got, err := c.CurrentSchema()
		require.NoError(t, err)
		assert.Equal(t, "bld-01", got)
		e, ok := c.Entry()
		require.True(t, ok)
		assert.Equal(t, "BLD01", e.Code)
	})

	t.Run("rejections", func(t *testing.T) {
		for name, schema := range map[string]string{
			"empty":     "",
			"blank":     "   ",
			"unknown":   "bld-99",
			"inactive":  "bld-03",
			"malformed": "bld;drop",
		} {
			c := NewContext(testRegistry())
			err := c.SetSchema(ctx, schema)
			assert.ErrorIs(t, err, ErrInvalidTenant, name)
			_, err = c.CurrentSchema()
			assert.ErrorIs(t, err, ErrNoTenantBound, name)
		}
	})

	t.Run("set once", func(t *testing.T) {
		c := NewContext(testRegistry())
		require.NoError(t, c.SetSchema(ctx, "bld-01"))
		assert.NoError(t, c.SetSchema(ctx, "bld-01"))
		assert.ErrorIs(t, c.SetSchema(ctx, "bld-02"), ErrSchemaAlreadySet)
		got, _ := c.CurrentSchema()
		assert.Equal(t, "bld-01", got)
	})

	t.Run("registry failure is not an invalid tenant", func(t *testing.T) {
		boom := errors.New("db down")
		c := NewContext(failingRegistry{err: boom})
		err := c.SetSchema(ctx, "bld-01")
		require.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrInvalidTenant)
	})
}

func TestCurrentSchemaUnbound(t *testing.T) {
	_, err := CurrentSchema(context.Background())
	assert.ErrorIs(t, err, ErrNoTenantBound)

	ctx := Attach(context.Background(), NewContext(testRegistry()))
	_, err = CurrentSchema(ctx)
	assert.ErrorIs(t, err, ErrNoTenantBound)
}

func TestConcurrentRequestsDoNotShareTenant(t *testing.T) {
	reg := testRegistry()
	base := context.Background()

	aBound := make(chan struct{})
	bRead := make(chan struct{})
	var wg sync.WaitGroup
	var aSchema string
	var aErr, bErr error

	wg.Add(2)
	go func() { // request A
		defer wg.Done()
		ctx := Attach(base, NewContext(reg))
		if err := FromContext(ctx).SetSchema(ctx, "bld-02"); err != nil {
			aErr = err
			close(aBound)
			return
		}
		close(aBound)
		<-bRead
		aSchema, aErr = CurrentSchema(ctx)
	}()
	go func() { // request B never binds
		defer wg.Done()
		ctx := Attach(base, NewContext(reg))
		<-aBound
		_, bErr = CurrentSchema(ctx)
		close(bRead)
	}()
	wg.Wait()

	require.NoError(t, aErr)
	assert.Equal(t, "bld-02", aSchema)
	assert.ErrorIs(t, bErr, ErrNoTenantBound)
}

func TestManyConcurrentRequests(t *testing.T) {
	reg := testRegistry()
	schemas := []string{"bld-01", "bld-02"}
	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := schemas[i%2]
			ctx := Attach(context.Background(), NewContext(reg))
			if err := FromContext(ctx).SetSchema(ctx, want); err != nil {
				errs <- err
				return
			}
			got, err := CurrentSchema(ctx)
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- errors.New("leaked schema " + got + " into request for " + want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
