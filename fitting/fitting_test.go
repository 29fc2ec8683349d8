package fitting

import (
	"context"
	"errors"
	"testing"

	"github.com/ynl8015/otfit/store"
	"github.com/ynl8015/otfit/taxonomy"
)

type backendCall struct {
	user, garment string
	category      taxonomy.Category
}

type fakeBackend struct {
	name   string
	result string
	err    error
	calls  []backendCall
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) TryOn(_ context.Context, user, garment string, c taxonomy.Category) (string, error) {
	f.calls = append(f.calls, backendCall{user, garment, c})
	return f.result, f.err
}

func service(t *testing.T, primary, secondary *fakeBackend) (*Service, *store.DB) {
	t.Helper()
	s := store.OpenMemory(t)
	return New(Config{Store: s, Primary: primary, Secondary: secondary}), s
}

func TestTryOnRejectsUnsupportedCategory(t *testing.T) {
	primary := &fakeBackend{name: "fitdit"}
	secondary := &fakeBackend{name: "leffa"}
	svc, _ := service(t, primary, secondary)

	for _, c := range []taxonomy.Category{taxonomy.Shoes, taxonomy.Accessory, taxonomy.Unknown} {
		_, err := svc.TryOn(context.Background(), "data:image/png;base64,AA==", "https://img/g.jpg", c)
		if !errors.Is(err, ErrUnsupportedCategory) {
			t.Fatalf("%s: expected ErrUnsupportedCategory, got %v", c, err)
		}
	}
	if len(primary.calls)+len(secondary.calls) != 0 {
		t.Fatal("no backend should run for unsupported categories")
	}
}

func TestPrimarySuccessSpendsQuotaAndCaches(t *testing.T) {
	primary := &fakeBackend{name: "fitdit", result: "https://result/img.png"}
	secondary := &fakeBackend{name: "leffa", result: "https://other/img.png"}
	svc, s := service(t, primary, secondary)
	ctx := context.Background()

	res, err := svc.TryOn(ctx, "https://me.jpg", "https://garment.jpg", taxonomy.Upper)
	if err != nil {
		t.Fatal(err)
	}
	if res.Backend != "fitdit" || res.Image != "https://result/img.png" || res.QuotaExceeded {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(secondary.calls) != 0 {
		t.Fatal("secondary must not run when primary succeeds")
	}

	n, err := store.GetInt(ctx, s, store.KeyFitditCallCount)
	if err != nil || n != 1 {
		t.Fatalf("expected quota count 1, got %d (err=%v)", n, err)
	}

	image, ok, err := svc.CachedResult(ctx, "https://garment.jpg")
	if err != nil || !ok || image != "https://result/img.png" {
		t.Fatalf("result not cached: %q ok=%v err=%v", image, ok, err)
	}
}

func TestPrimaryFailureFallsBackWithSameInputs(t *testing.T) {
	primary := &fakeBackend{name: "fitdit", err: errors.New("space asleep")}
	secondary := &fakeBackend{name: "leffa", result: "https://leffa/img.png"}
	svc, s := service(t, primary, secondary)
	ctx := context.Background()

	res, err := svc.TryOn(ctx, "https://me.jpg", "https://garment.jpg", taxonomy.Lower)
	if err != nil {
		t.Fatal(err)
	}
	if res.Backend != "leffa" || res.QuotaExceeded {
		t.Fatalf("unexpected result: %+v", res)
	}

	// The fallback gets the identical logical inputs.
	if len(primary.calls) != 1 || len(secondary.calls) != 1 {
		t.Fatalf("calls: primary=%d secondary=%d", len(primary.calls), len(secondary.calls))
	}
	if primary.calls[0] != secondary.calls[0] {
		t.Fatalf("inputs diverged: %+v vs %+v", primary.calls[0], secondary.calls[0])
	}

	// A failed primary spends no quota.
	if n, _ := store.GetInt(ctx, s, store.KeyFitditCallCount); n != 0 {
		t.Fatalf("failed primary must not spend quota, count=%d", n)
	}
}

func TestQuotaSpentSkipsPrimary(t *testing.T) {
	primary := &fakeBackend{name: "fitdit", result: "https://never.png"}
	secondary := &fakeBackend{name: "leffa", result: "https://leffa/img.png"}
	svc, s := service(t, primary, secondary)
	ctx := context.Background()

	if err := s.Set(ctx, map[string]any{store.KeyFitditCallCount: QuotaLimit}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.TryOn(ctx, "https://me.jpg", "https://garment.jpg", taxonomy.Dress)
	if err != nil {
		t.Fatal(err)
	}
	if len(primary.calls) != 0 {
		t.Fatal("primary must be skipped at the quota limit")
	}
	if res.Backend != "leffa" || !res.QuotaExceeded {
		t.Fatalf("unexpected result: %+v", res)
	}
	// Secondary success never touches the counter.
	if n, _ := store.GetInt(ctx, s, store.KeyFitditCallCount); n != QuotaLimit {
		t.Fatalf("counter moved: %d", n)
	}
}

func TestQuotaRollover(t *testing.T) {
	// The 50th successful primary call is allowed; the 51st attempt is
	// routed to the secondary.
	primary := &fakeBackend{name: "fitdit", result: "https://fitdit/img.png"}
	secondary := &fakeBackend{name: "leffa", result: "https://leffa/img.png"}
	svc, s := service(t, primary, secondary)
	ctx := context.Background()

	if err := s.Set(ctx, map[string]any{store.KeyFitditCallCount: QuotaLimit - 1}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.TryOn(ctx, "https://me.jpg", "https://g1.jpg", taxonomy.Upper)
	if err != nil || res.Backend != "fitdit" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if n, _ := store.GetInt(ctx, s, store.KeyFitditCallCount); n != QuotaLimit {
		t.Fatalf("expected counter at limit, got %d", n)
	}

	res, err = svc.TryOn(ctx, "https://me.jpg", "https://g2.jpg", taxonomy.Upper)
	if err != nil {
		t.Fatal(err)
	}
	if res.Backend != "leffa" || !res.QuotaExceeded {
		t.Fatalf("expected secondary after rollover: %+v", res)
	}
	if len(primary.calls) != 1 {
		t.Fatalf("primary called %d times", len(primary.calls))
	}
}

func TestBothBackendsFail(t *testing.T) {
	primary := &fakeBackend{name: "fitdit", err: errors.New("primary down")}
	secondary := &fakeBackend{name: "leffa", err: errors.New("secondary down")}
	svc, _ := service(t, primary, secondary)

	_, err := svc.TryOn(context.Background(), "https://me.jpg", "https://g.jpg", taxonomy.Upper)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	// The terminal error carries the secondary's failure.
	if be.Backend != "leffa" || be.Err.Error() != "secondary down" {
		t.Fatalf("unexpected BackendError: %+v", be)
	}
}

func TestResultCacheLastWriteWins(t *testing.T) {
	primary := &fakeBackend{name: "fitdit", result: "https://first.png"}
	secondary := &fakeBackend{name: "leffa"}
	svc, _ := service(t, primary, secondary)
	ctx := context.Background()

	if _, err := svc.TryOn(ctx, "https://me.jpg", "https://g.jpg", taxonomy.Upper); err != nil {
		t.Fatal(err)
	}
	primary.result = "https://second.png"
	if _, err := svc.TryOn(ctx, "https://me.jpg", "https://g.jpg", taxonomy.Upper); err != nil {
		t.Fatal(err)
	}

	image, ok, err := svc.CachedResult(ctx, "https://g.jpg")
	if err != nil || !ok || image != "https://second.png" {
		t.Fatalf("expected newest result cached, got %q ok=%v err=%v", image, ok, err)
	}
}

func TestQuotaRemaining(t *testing.T) {
	primary := &fakeBackend{name: "fitdit"}
	secondary := &fakeBackend{name: "leffa"}
	svc, s := service(t, primary, secondary)
	ctx := context.Background()

	n, err := svc.QuotaRemaining(ctx)
	if err != nil || n != QuotaLimit {
		t.Fatalf("fresh store: %d (err=%v)", n, err)
	}
	if err := s.Set(ctx, map[string]any{store.KeyFitditCallCount: QuotaLimit + 5}); err != nil {
		t.Fatal(err)
	}
	if n, _ := svc.QuotaRemaining(ctx); n != 0 {
		t.Fatalf("over-limit counter should report 0, got %d", n)
	}
}
