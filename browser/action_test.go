package browser

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"
)

func TestDescriptorDecode(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		want    Action
		wantErr error
	}{
		{
			name: "click",
			desc: Descriptor{Kind: KindClick, Params: map[string]any{"selector": "#go"}},
			want: ClickAction{Selector: "#go"},
		},
		{
			name: "fill",
			desc: Descriptor{Kind: KindFill, Params: map[string]any{"selector": "#q", "value": "foo"}},
			want: FillAction{Selector: "#q", Value: "foo"},
		},
		{
			name: "fill with empty value",
			desc: Descriptor{Kind: KindFill, Params: map[string]any{"selector": "#q", "value": ""}},
			want: FillAction{Selector: "#q", Value: ""},
		},
		{
			name: "fill with numeric value",
			desc: Descriptor{Kind: KindFill, Params: map[string]any{"selector": "#n", "value": float64(42)}},
			want: FillAction{Selector: "#n", Value: "42"},
		},
		{
			name: "navigate",
			desc: Descriptor{Kind: KindNavigate, Params: map[string]any{"url": "https://example.test"}},
			want: NavigateAction{URL: "https://example.test"},
		},
		{
			name: "wait default",
			desc: Descriptor{Kind: KindWait},
			want: WaitAction{Timeout: DefaultWaitTimeout},
		},
		{
			name: "wait json number",
			desc: Descriptor{Kind: KindWait, Params: map[string]any{"timeout": float64(250)}},
			want: WaitAction{Timeout: 250 * time.Millisecond},
		},
		{
			name: "wait yaml int",
			desc: Descriptor{Kind: KindWait, Params: map[string]any{"timeout": 5}},
			want: WaitAction{Timeout: 5 * time.Millisecond},
		},
		{
			name: "screenshot default full page",
			desc: Descriptor{Kind: KindScreenshot},
			want: ScreenshotAction{FullPage: true},
		},
		{
			name: "screenshot viewport",
			desc: Descriptor{Kind: KindScreenshot, Params: map[string]any{"full_page": false}},
			want: ScreenshotAction{FullPage: false},
		},
		{
			name:    "unknown kind",
			desc:    Descriptor{Kind: "hover", Params: map[string]any{"selector": "#x"}},
			wantErr: ErrUnknownKind,
		},
		{
			name:    "click without selector",
			desc:    Descriptor{Kind: KindClick},
			wantErr: ErrMissingParam,
		},
		{
			name:    "click with empty selector",
			desc:    Descriptor{Kind: KindClick, Params: map[string]any{"selector": ""}},
			wantErr: ErrMissingParam,
		},
		{
			name:    "fill without value",
			desc:    Descriptor{Kind: KindFill, Params: map[string]any{"selector": "#q"}},
			wantErr: ErrMissingParam,
		},
		{
			name:    "navigate with non-string url",
			desc:    Descriptor{Kind: KindNavigate, Params: map[string]any{"url": 7}},
			wantErr: ErrMissingParam,
		},
		{
			name:    "wait negative",
			desc:    Descriptor{Kind: KindWait, Params: map[string]any{"timeout": -1}},
			wantErr: ErrMissingParam,
		},
		{
			name: "wait at duration limit",
			desc: Descriptor{Kind: KindWait, Params: map[string]any{"timeout": maxWaitMillis}},
			want: WaitAction{Timeout: time.Duration(maxWaitMillis) * time.Millisecond},
		},
		{
			name:    "wait overflowing duration",
			desc:    Descriptor{Kind: KindWait, Params: map[string]any{"timeout": 1e13}},
			wantErr: ErrMissingParam,
		},
		{
			name:    "wait huge float",
			desc:    Descriptor{Kind: KindWait, Params: map[string]any{"timeout": 1e300}},
			wantErr: ErrMissingParam,
		},
		{
			name:    "wait huge string",
			desc:    Descriptor{Kind: KindWait, Params: map[string]any{"timeout": "1e13"}},
			wantErr: ErrMissingParam,
		},
		{
			name:    "wait max int64",
			desc:    Descriptor{Kind: KindWait, Params: map[string]any{"timeout": int64(math.MaxInt64)}},
			wantErr: ErrMissingParam,
		},
		{
			name:    "screenshot full_page not bool",
			desc:    Descriptor{Kind: KindScreenshot, Params: map[string]any{"full_page": "yes"}},
			wantErr: ErrMissingParam,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.desc.Decode()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.desc.Kind, got.Kind())
		})
	}
}

func TestDescriptorUnmarshal(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var ds []Descriptor
		require.NoError(t, json.Unmarshal([]byte(`[
			{"kind":"navigate","params":{"url":"https://example.test"}},
			{"kind":"wait","params":{"timeout":300}},
			{"kind":"screenshot"}
		]`), &ds))
		require.Len(t, ds, 3)

		a, err := ds[1].Decode()
		require.NoError(t, err)
		assert.Equal(t, WaitAction{Timeout: 300 * time.Millisecond}, a)
	})

	t.Run("yaml", func(t *testing.T) {
		var ds []Descriptor
		require.NoError(t, yaml.Unmarshal([]byte(`
- kind: fill
  params:
    selector: "#q"
    value: foo
- kind: wait
  params:
    timeout: 20
`), &ds))
		require.Len(t, ds, 2)

		a, err := ds[0].Decode()
		require.NoError(t, err)
		assert.Equal(t, FillAction{Selector: "#q", Value: "foo"}, a)

		a, err = ds[1].Decode()
		require.NoError(t, err)
		assert.Equal(t, WaitAction{Timeout: 20 * time.Millisecond}, a)
	})
}

func TestWaitTimeoutRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(0, 10*60*1000).Draw(t, "ms")
		d := Descriptor{Kind: KindWait, Params: map[string]any{"timeout": float64(ms)}}

		a, err := d.Decode()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		w, ok := a.(WaitAction)
		if !ok {
			t.Fatalf("expected WaitAction, got %T", a)
		}
		if w.Timeout.Milliseconds() != ms {
			t.Fatalf("expected %dms, got %v", ms, w.Timeout)
		}
	})
}

func TestWaitTimeoutNeverNegative_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := rapid.Float64().Draw(t, "timeout")
		d := Descriptor{Kind: KindWait, Params: map[string]any{"timeout": f}}

		a, err := d.Decode()
		if err != nil {
			return
		}
		if w := a.(WaitAction); w.Timeout < 0 {
			t.Fatalf("timeout %v decoded to negative wait %v", f, w.Timeout)
		}
	})
}
