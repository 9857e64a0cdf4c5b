package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ronwebb/pixtell/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tinyPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestNew_RequiresToken(t *testing.T) {
	_, err := engine.New(engine.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestNew_AppliesDefaults(t *testing.T) {
	cfg := engine.Config{}
	cfg.Hub.Token = "tok"

	eng, err := engine.New(cfg)
	require.NoError(t, err)

	effective := eng.Config()
	assert.Equal(t, "https://api-inference.huggingface.co", effective.Hub.BaseURL)
	assert.Equal(t, "Salesforce/blip-image-captioning-large", effective.Models.Caption)
	assert.Equal(t, "Salesforce/blip-vqa-base", effective.Models.VQA)
}

func TestNewSession_UniqueIDs(t *testing.T) {
	cfg := engine.Config{}
	cfg.Hub.Token = "tok"

	eng, err := engine.New(cfg)
	require.NoError(t, err)

	s1 := eng.NewSession()
	s2 := eng.NewSession()
	assert.NotEqual(t, s1.ID(), s2.ID())

	eng.RemoveSession(s1.ID())
}

// TestEngine_EndToEnd drives a session against a fake hub server.
func TestEngine_EndToEnd(t *testing.T) {
	var captionCalls, vqaCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/models/cap-model":
			captionCalls++
			_, _ = w.Write([]byte(`[{"generated_text":"a red bicycle leaning on a wall"}]`))
		case "/models/vqa-model":
			vqaCalls++
			_, _ = w.Write([]byte(`[{"answer":"red","score":0.99}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	imgPath := filepath.Join(t.TempDir(), "bike.png")
	require.NoError(t, os.WriteFile(imgPath, tinyPNG, 0o600))

	cfg := engine.Config{}
	cfg.Hub.Token = "tok"
	cfg.Hub.BaseURL = srv.URL
	cfg.Models.Caption = "cap-model"
	cfg.Models.VQA = "vqa-model"

	eng, err := engine.New(cfg)
	require.NoError(t, err)

	sess := eng.NewSession()
	ctx := context.Background()

	require.NoError(t, sess.SetImage(ctx, imgPath))

	out, err := sess.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a red bicycle leaning on a wall", out)
	assert.Equal(t, 1, captionCalls)

	ans, err := sess.Ask(ctx, "what color is the bicycle?")
	require.NoError(t, err)
	assert.Equal(t, "red", ans)
	assert.Equal(t, 1, vqaCalls)

	assert.Equal(t, 1, eng.CaptionStats().Count())
}
