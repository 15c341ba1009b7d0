package providers

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/infrastructure/mock"
	"github.com/example/bookhub/internal/internaltypes"
)

func TestRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	f := func() (reservation.Adapter, error) { return mock.New("demo", nil), nil }
	if err := r.Register("demo", f); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("demo", f); err == nil {
		t.Fatal("second Register of the same name succeeded")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("MustRegister of a duplicate did not panic")
		}
	}()
	r.MustRegister("demo", f)
}

func TestResolveUnknownListsProviders(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister("zenchef", func() (reservation.Adapter, error) { return mock.New("zenchef", nil), nil })
	r.MustRegister("demo", func() (reservation.Adapter, error) { return mock.New("demo", nil), nil })

	_, err := r.Resolve("bookatable")
	if !errors.Is(err, internaltypes.ErrUnknownProvider) {
		t.Fatalf("Resolve = %v, want unknown provider", err)
	}
	known, _ := internaltypes.DetailsOf(err)["available_providers"].([]string)
	if len(known) != 2 || known[0] != "demo" || known[1] != "zenchef" {
		t.Fatalf("available_providers = %v", known)
	}
}

func TestResolveBuildsOnce(t *testing.T) {
	t.Parallel()

	var builds atomic.Int32
	r := NewRegistry()
	r.MustRegister("demo", func() (reservation.Adapter, error) {
		builds.Add(1)
		return mock.New("demo", nil), nil
	})

	var wg sync.WaitGroup
	got := make([]reservation.Adapter, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := r.Resolve("demo")
			if err != nil {
				t.Errorf("Resolve: %v", err)
			}
			got[i] = a
		}(i)
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Fatalf("factory ran %d times", builds.Load())
	}
	for _, a := range got[1:] {
		if a != got[0] {
			t.Fatal("Resolve returned different adapter instances")
		}
	}
}

func TestFactoryErrorIsNotCached(t *testing.T) {
	t.Parallel()

	fail := true
	r := NewRegistry()
	r.MustRegister("flaky", func() (reservation.Adapter, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return mock.New("flaky", nil), nil
	})
	if _, err := r.Resolve("flaky"); err == nil {
		t.Fatal("Resolve succeeded on a failing factory")
	}
	fail = false
	if _, err := r.Resolve("flaky"); err != nil {
		t.Fatalf("Resolve after recovery: %v", err)
	}
}

func TestResolveForBuildsOneAdapterPerRef(t *testing.T) {
	t.Parallel()

	var refs []string
	r := NewRegistry()
	r.MustRegister("demo", func() (reservation.Adapter, error) { return mock.New("demo", nil), nil })
	if err := r.RegisterScoped("zenchef", func(ref string) (reservation.Adapter, error) {
		refs = append(refs, ref)
		return mock.New("zenchef", nil), nil
	}); err != nil {
		t.Fatalf("RegisterScoped: %v", err)
	}

	a1, _ := r.ResolveFor("zenchef", "zenchef/paris")
	a2, _ := r.ResolveFor("zenchef", "zenchef/london")
	again, _ := r.ResolveFor("zenchef", "zenchef/paris")
	def, _ := r.Resolve("zenchef")
	if a1 == a2 || a1 != again || def == a1 {
		t.Fatal("adapters not cached per credential reference")
	}
	if len(refs) != 3 || refs[0] != "zenchef/paris" || refs[1] != "zenchef/london" || refs[2] != "" {
		t.Fatalf("factory refs = %v", refs)
	}

	d1, _ := r.ResolveFor("demo", "x")
	d2, _ := r.Resolve("demo")
	if d1 != d2 {
		t.Fatal("unscoped provider built once per ref")
	}
	if err := r.RegisterScoped("demo", func(string) (reservation.Adapter, error) { return nil, nil }); err == nil {
		t.Fatal("RegisterScoped accepted a registered name")
	}
}
