package command

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"judgeflow/internal/judging/model"
)

// FileMarker stands in for a value that will be read from a file param.
const FileMarker = "_file_"

var (
	idField   = Field{Name: "id", Prompt: "session id", Type: FieldString}
	slugField = Field{Name: "problem_slug", Aliases: []string{"slug", "problem"}, Prompt: "problem slug", Type: FieldString, Required: true}
	langField = Field{Name: "language_id", Aliases: []string{"language", "lang"}, Prompt: "judge0 language id", Type: FieldInt, Required: true}
	codeField = Field{Name: "code", Prompt: "code", Type: FieldString, Required: true}
	fileField = Field{Name: "source_file", Aliases: []string{"file"}, Prompt: "source file", Type: FieldFile}
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "run",
			Action:       "create",
			Method:       http.MethodPost,
			PathTemplate: "/api/run",
			Mode:         model.ModeRun,
			Fields: []Field{
				{Name: "user_id", Aliases: []string{"user"}, Prompt: "user id", Type: FieldInt64},
				slugField,
				langField,
				codeField,
				fileField,
			},
		},
		{
			Service:      "run",
			Action:       "poll",
			Method:       http.MethodGet,
			PathTemplate: "/api/run/:id",
			Mode:         model.ModeRun,
			Fields:       []Field{idField},
		},
		{
			Service:      "run",
			Action:       "wait",
			Method:       http.MethodGet,
			PathTemplate: "/api/run/:id",
			Mode:         model.ModeRun,
			Wait:         true,
			Fields:       []Field{idField},
		},
		{
			Service:      "submit",
			Action:       "create",
			Method:       http.MethodPost,
			PathTemplate: "/api/submit",
			Mode:         model.ModeSubmit,
			Fields: []Field{
				{Name: "user_id", Aliases: []string{"user"}, Prompt: "user id", Type: FieldInt64, Required: true},
				slugField,
				langField,
				codeField,
				fileField,
				{Name: "idempotency_key", Aliases: []string{"key"}, Prompt: "idempotency key", Type: FieldString},
			},
		},
		{
			Service:      "submit",
			Action:       "poll",
			Method:       http.MethodGet,
			PathTemplate: "/api/submit/:id",
			Mode:         model.ModeSubmit,
			Fields:       []Field{idField},
		},
		{
			Service:      "submit",
			Action:       "wait",
			Method:       http.MethodGet,
			PathTemplate: "/api/submit/:id",
			Mode:         model.ModeSubmit,
			Wait:         true,
			Fields:       []Field{idField},
		},
		{
			Service:      "problem",
			Action:       "get",
			Method:       http.MethodGet,
			PathTemplate: "/api/problems/:problem_slug",
			Fields:       []Field{slugField},
		},
	}

	registry := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		registry[cmd.Key()] = cmd
	}
	return registry
}

// BuildRequest renders cmd with params into an HTTP request.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd, params)
	if err != nil {
		return RequestSpec{}, err
	}

	headers := map[string]string{}
	if cmd.Key() == "submit create" {
		headers["Idempotency-Key"] = strings.TrimSpace(params.Get("idempotency_key"))
	}

	var body []byte
	if cmd.Method == http.MethodPost {
		payload, err := buildCreatePayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		body, err = json.Marshal(payload)
		if err != nil {
			return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: headers,
		Body:    body,
	}, nil
}

func buildPath(cmd Command, params Params) (string, error) {
	path := cmd.PathTemplate
	for _, field := range cmd.Fields {
		placeholder := ":" + field.Name
		if !strings.Contains(path, placeholder) {
			continue
		}
		value := strings.TrimSpace(params.Get(field.Name))
		if value == "" {
			return "", fmt.Errorf("missing path parameter: %s", field.Name)
		}
		path = strings.ReplaceAll(path, placeholder, url.PathEscape(value))
	}
	return path, nil
}

type createPayload struct {
	UserID      int64  `json:"userId,omitempty"`
	ProblemSlug string `json:"problemSlug"`
	LanguageID  int    `json:"languageId"`
	Code        string `json:"code"`
}

func buildCreatePayload(cmd Command, params Params) (createPayload, error) {
	var payload createPayload
	if raw := params.Get("user_id"); raw != "" {
		userID, err := ParseInt64(raw)
		if err != nil {
			return payload, fmt.Errorf("invalid user_id: %w", err)
		}
		payload.UserID = userID
	}
	if cmd.Mode == model.ModeSubmit && payload.UserID <= 0 {
		return payload, fmt.Errorf("user_id is required")
	}

	languageID, err := ParseInt(params.Get("language_id"))
	if err != nil {
		return payload, fmt.Errorf("invalid language_id: %w", err)
	}
	payload.LanguageID = languageID
	payload.ProblemSlug = strings.TrimSpace(params.Get("problem_slug"))

	code := params.Get("code")
	if (code == "" || code == FileMarker) && params.Get("source_file") != "" {
		code, err = ReadFile(params.Get("source_file"))
		if err != nil {
			return payload, err
		}
	}
	if code == "" || code == FileMarker {
		return payload, fmt.Errorf("code is required")
	}
	payload.Code = code
	return payload, nil
}
