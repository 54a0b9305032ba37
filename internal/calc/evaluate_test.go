package calc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calcdesk/internal/calcapi"
)

func newEvaluator(t *testing.T, input string) (*Evaluator, *MockAPI, *Box) {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	out := NewBox("")
	return &Evaluator{API: api, Input: NewBox(input), Output: NewOutput(out)}, api, out
}

func TestEvaluator_BlankExpressionSkipsNetwork(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		ev, _, out := newEvaluator(t, input)

		o := ev.Evaluate(context.Background())

		assert.Equal(t, KindPrompt, o.Kind)
		assert.Equal(t, "Enter an expression", out.Text())
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	tests := []struct {
		name      string
		result    json.RawMessage
		err       error
		wantText  string
		wantKind  Kind
		wantExact bool
	}{
		{name: "string result", result: json.RawMessage(`"7"`), wantText: "7", wantKind: KindResult, wantExact: true},
		{name: "number result", result: json.RawMessage(`11.302585092994`), wantText: "11.302585092994", wantKind: KindResult, wantExact: true},
		{name: "integral float", result: json.RawMessage(`8.0`), wantText: "8", wantKind: KindResult, wantExact: true},
		{name: "null result", result: json.RawMessage(`null`), wantText: "", wantKind: KindResult, wantExact: true},
		{name: "absent result", wantText: "", wantKind: KindResult, wantExact: true},
		{
			name:      "application error",
			err:       &calcapi.APIError{Endpoint: "/api/evaluate", Message: "bad token"},
			wantText:  "Error: bad token",
			wantKind:  KindAppError,
			wantExact: true,
		},
		{
			name:     "network error",
			err:      errors.New(`Post "http://127.0.0.1:5000/api/evaluate": connection refused`),
			wantText: "Network error: ",
			wantKind: KindNetworkError,
		},
		{
			name:     "malformed response",
			err:      &calcapi.DecodeError{Status: 502, Reason: "response is not valid json"},
			wantText: "Network error: calcapi http 502",
			wantKind: KindNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, api, out := newEvaluator(t, "  1+2*3  ")
			api.EXPECT().Evaluate(gomock.Any(), "1+2*3").Return(tt.result, tt.err)

			o := ev.Evaluate(context.Background())

			assert.Equal(t, tt.wantKind, o.Kind)
			if tt.wantExact {
				assert.Equal(t, tt.wantText, out.Text())
			} else {
				assert.True(t, strings.HasPrefix(out.Text(), tt.wantText), "got %q", out.Text())
			}
			assert.Equal(t, o.Text, out.Text())
			if tt.err != nil {
				assert.ErrorIs(t, o.Err, tt.err)
			}
		})
	}
}

func TestEvaluator_PendingTextUntilRendered(t *testing.T) {
	ev, api, out := newEvaluator(t, "2**10")
	api.EXPECT().Evaluate(gomock.Any(), "2**10").Return(json.RawMessage(`1024`), nil)

	c := ev.Start(context.Background())
	require.NotNil(t, c)
	assert.Equal(t, "Computing...", out.Text())

	o := c.Run()
	assert.Equal(t, "Computing...", out.Text())
	assert.True(t, c.Render(o))
	assert.Equal(t, "1024", out.Text())
}

func TestEvaluator_StaleResponseIsDiscarded(t *testing.T) {
	ev, api, out := newEvaluator(t, "slow")

	api.EXPECT().Evaluate(gomock.Any(), "slow").DoAndReturn(func(ctx context.Context, _ string) (json.RawMessage, error) {
		// superseded before it ran
		return nil, ctx.Err()
	})
	api.EXPECT().Evaluate(gomock.Any(), "fast").Return(json.RawMessage(`"2"`), nil)

	first := ev.Start(context.Background())
	ev.Input = NewBox("fast")
	second := ev.Start(context.Background())

	assert.True(t, first.Stale())
	assert.False(t, second.Stale())

	_, rendered := second.Do()
	assert.True(t, rendered)
	assert.Equal(t, "2", out.Text())

	o, rendered := first.Do()
	assert.False(t, rendered)
	assert.ErrorIs(t, o.Err, context.Canceled)
	assert.Equal(t, "2", out.Text())
}

func TestEvaluator_PromptSupersedesPendingCall(t *testing.T) {
	ev, api, out := newEvaluator(t, "1+1")
	api.EXPECT().Evaluate(gomock.Any(), "1+1").Return(json.RawMessage(`2`), nil)

	c := ev.Start(context.Background())
	ev.Input = NewBox(" ")
	assert.Nil(t, ev.Start(context.Background()))

	_, rendered := c.Do()
	assert.False(t, rendered)
	assert.Equal(t, "Enter an expression", out.Text())
}

func TestEvaluator_Format(t *testing.T) {
	round := func(_ context.Context, res json.RawMessage) (json.RawMessage, error) {
		assert.Equal(t, `3.14159`, string(res))
		return json.RawMessage(`3.14`), nil
	}
	failing := func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("hook exploded")
	}

	ev, api, out := newEvaluator(t, "pi")
	api.EXPECT().Evaluate(gomock.Any(), "pi").Return(json.RawMessage(`3.14159`), nil).Times(2)

	ev.Format = round
	ev.Evaluate(context.Background())
	assert.Equal(t, "3.14", out.Text())

	ev.Format = failing
	o := ev.Evaluate(context.Background())
	assert.Equal(t, KindFormatError, o.Kind)
	assert.Equal(t, "Format error: hook exploded", out.Text())
}

func TestEvaluator_FormatSkippedOnError(t *testing.T) {
	ev, api, out := newEvaluator(t, "1/0")
	api.EXPECT().Evaluate(gomock.Any(), "1/0").Return(nil, &calcapi.APIError{Message: "division by zero"})
	ev.Format = func(context.Context, json.RawMessage) (json.RawMessage, error) {
		t.Fatal("format called for an error envelope")
		return nil, nil
	}

	ev.Evaluate(context.Background())
	assert.Equal(t, "Error: division by zero", out.Text())
}

func TestInsertSample(t *testing.T) {
	field := NewBox("old text")
	InsertSample(field)
	assert.Equal(t, "sin(pi/2) + ln(10) + 2**3", field.Text())
}
