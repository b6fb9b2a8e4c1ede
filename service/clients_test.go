package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"StoryToVideo-gateway/config"
	"StoryToVideo-gateway/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClients(t *testing.T, h http.HandlerFunc) *Clients {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Services.StoryboardURL = srv.URL
	cfg.Services.ImageURL = srv.URL
	cfg.Services.Img2VidURL = srv.URL
	cfg.Services.TTSURL = srv.URL
	return NewClients(cfg)
}

func TestStoryboardErrorStatusIsCollaboratorError(t *testing.T) {
	c := newTestClients(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := c.Storyboard(context.Background(), "a story", "", 4)
	require.Error(t, err)

	var ce *CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "storyboard", ce.Service)
	assert.Contains(t, ce.Error(), "503")
}

func TestStoryboardMalformedBodyIsCollaboratorError(t *testing.T) {
	c := newTestClients(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := c.Storyboard(context.Background(), "a story", "", 4)
	var ce *CollaboratorError
	require.True(t, errors.As(err, &ce))
}

func TestStoryboardPrefersNewKeyOverLegacy(t *testing.T) {
	c := newTestClients(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"storyboard": []Scene{{SceneID: "new"}},
			"shots":      []Scene{{SceneID: "legacy"}},
		})
	})

	scenes, err := c.Storyboard(context.Background(), "a story", "", 4)
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, "new", scenes[0].SceneID)
}

func TestImageToVideoMissingArtifactIsCollaboratorError(t *testing.T) {
	c := newTestClients(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"video": ""})
	})

	_, err := c.ImageToVideo(context.Background(), "/up/frame.png", "s1", 12, 16)
	require.Error(t, err)

	var ce *CollaboratorError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "img2vid", ce.Service)
}

func TestGenerateImageSendsStyleBlock(t *testing.T) {
	var got map[string]interface{}
	c := newTestClients(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]interface{}{"images": []ImageArtifact{{Path: "/up/f.png"}}})
	})

	p := models.DefaultRenderParams()
	_, err := c.GenerateImage(context.Background(), "a harbor", "s1", p)
	require.NoError(t, err)

	style, ok := got["style"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 768, style["width"])
	assert.EqualValues(t, 512, style["height"])
	assert.EqualValues(t, 4, style["num_inference_steps"])
	assert.EqualValues(t, 1.5, style["guidance_scale"])
}

func TestNarrationOmitsEmptySpeaker(t *testing.T) {
	var got map[string]interface{}
	c := newTestClients(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, map[string]interface{}{"audios": []AudioArtifact{}})
	})

	_, err := c.Narration(context.Background(), []NarrationLine{{SceneID: "s1", Text: "hi"}}, "", 1.0)
	require.NoError(t, err)
	_, hasSpeaker := got["speaker"]
	assert.False(t, hasSpeaker, "speaker must be omitted when unset")

	_, err = c.Narration(context.Background(), []NarrationLine{{SceneID: "s1", Text: "hi"}}, "zh-f1", 1.0)
	require.NoError(t, err)
	assert.Equal(t, "zh-f1", got["speaker"])
}
