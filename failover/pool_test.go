package failover

import (
	"context"
	"testing"
	"time"

	commonerrors "github.com/FluxPay/paycore-lib/common/errors"
	"github.com/FluxPay/paycore-lib/common/retry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type fakeConn struct {
	url      string
	probeErr error
	closed   bool
}

func (c *fakeConn) Probe(ctx context.Context) error { return c.probeErr }
func (c *fakeConn) Close()                          { c.closed = true }

type fakeConnector struct {
	dialErrs  map[string]error
	probeErrs map[string]error
	dialed    []string
}

func (f *fakeConnector) Dial(ctx context.Context, url string) (Connection, error) {
	f.dialed = append(f.dialed, url)
	if err := f.dialErrs[url]; err != nil {
		return nil, err
	}
	return &fakeConn{url: url, probeErr: f.probeErrs[url]}, nil
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    8 * time.Second,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestConnectUsesPrimaryFirst(t *testing.T) {
	connector := &fakeConnector{}
	pool := NewPool("testchain", []string{"primary", "secondary"}, connector, testPolicy(), silentLogger())

	conn, err := pool.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer conn.Close()

	if len(connector.dialed) != 1 || connector.dialed[0] != "primary" {
		t.Errorf("dialed = %v, want [primary]", connector.dialed)
	}
}

func TestConnectAdvancesOnDialFailure(t *testing.T) {
	connector := &fakeConnector{
		dialErrs: map[string]error{"primary": errors.New("connection refused")},
	}
	pool := NewPool("testchain", []string{"primary", "secondary"}, connector, testPolicy(), silentLogger())

	conn, err := pool.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer conn.Close()

	if got := conn.(*fakeConn).url; got != "secondary" {
		t.Errorf("connected endpoint = %q, want secondary", got)
	}
}

func TestConnectRejectsDeadProbe(t *testing.T) {
	connector := &fakeConnector{
		probeErrs: map[string]error{"primary": errors.New("probe timeout")},
	}
	pool := NewPool("testchain", []string{"primary", "secondary"}, connector, testPolicy(), silentLogger())

	conn, err := pool.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer conn.Close()

	if got := conn.(*fakeConn).url; got != "secondary" {
		t.Errorf("connected endpoint = %q, want secondary", got)
	}
}

func TestConnectAllEndpointsExhausted(t *testing.T) {
	connector := &fakeConnector{
		dialErrs: map[string]error{
			"a": errors.New("refused"),
			"b": errors.New("refused"),
			"c": errors.New("refused"),
		},
	}
	pool := NewPool("testchain", []string{"a", "b", "c"}, connector, testPolicy(), silentLogger())

	_, err := pool.Connect(context.Background())
	if !errors.Is(err, commonerrors.ErrRPCUnavailable) {
		t.Errorf("Connect returned %v, want ErrRPCUnavailable", err)
	}
	if len(connector.dialed) != 3 {
		t.Errorf("dialed %d endpoints, want 3", len(connector.dialed))
	}
}

func TestRotateSkipsRateLimitedEndpoint(t *testing.T) {
	connector := &fakeConnector{}
	pool := NewPool("testchain", []string{"primary", "secondary"}, connector, testPolicy(), silentLogger())

	pool.Rotate()

	conn, err := pool.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer conn.Close()

	if got := conn.(*fakeConn).url; got != "secondary" {
		t.Errorf("connected endpoint = %q, want secondary after rotate", got)
	}
}

func TestConnectBacksOffBetweenAttempts(t *testing.T) {
	var slept []time.Duration
	policy := testPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	connector := &fakeConnector{
		dialErrs: map[string]error{
			"a": errors.New("refused"),
			"b": errors.New("refused"),
		},
	}
	pool := NewPool("testchain", []string{"a", "b", "c"}, connector, policy, silentLogger())

	if _, err := pool.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Errorf("backoff sleeps = %v, want [1s 2s]", slept)
	}
}
