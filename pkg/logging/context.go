package logging

import (
	"context"
)

type contextKey string

const (
	TaskNameKey     contextKey = "task_name"
	MessageIDKey    contextKey = "message_id"
	PipelineNameKey contextKey = "pipeline"
)

// WithTaskName names the logical task running under ctx. Messages reported
// with ctx carry the name as their thread name.
func WithTaskName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, TaskNameKey, name)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithPipelineName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, PipelineNameKey, name)
}

func GetTaskName(ctx context.Context) string {
	return stringValue(ctx, TaskNameKey)
}

func GetMessageID(ctx context.Context) string {
	return stringValue(ctx, MessageIDKey)
}

func GetPipelineName(ctx context.Context) string {
	return stringValue(ctx, PipelineNameKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if name := GetTaskName(ctx); name != "" {
		fields = append(fields, string(TaskNameKey), name)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, string(MessageIDKey), messageID)
	}

	if pipeline := GetPipelineName(ctx); pipeline != "" {
		fields = append(fields, string(PipelineNameKey), pipeline)
	}

	return fields
}
