package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/mcp-teams/teams/action"
	"github.com/viant/mcp-teams/teams/graph/graphtest"
	"github.com/viant/mcp-teams/teams/service"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"chat_id=19:abc@thread.v2", "message=a=b", " top =5"})
	require.NoError(t, err)
	assert.Equal(t, action.Params{"chat_id": "19:abc@thread.v2", "message": "a=b", "top": "5"}, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
}

func TestRunAction(t *testing.T) {
	srv := graphtest.New()
	defer srv.Close()
	srv.JSON(http.MethodGet, "/teams/t-1/channels", http.StatusOK, map[string]interface{}{
		"value": []interface{}{map[string]interface{}{"id": "c-1", "displayName": "General"}},
	})
	svc := service.NewService(&service.Config{GraphURL: srv.URL, AccessToken: "token"})

	var stdout, stderr bytes.Buffer
	code := runAction(svc, Options{Action: "get_team_channels", Params: []string{"team_id=t-1"}, Alias: "default"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	var result action.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, "Found 1 channel: General", result.Summary)

	stdout.Reset()
	code = runAction(svc, Options{Action: "get_team_channels", Alias: "default"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), `"kind": "InvalidInput"`)
	assert.Empty(t, stdout.String())
}
