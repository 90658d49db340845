package middleware

import "context"

type contextKey string

const ProfileIDKey contextKey = "profile_id"

// GetProfileID возвращает id профиля браузера (устанавливается Profile).
func GetProfileID(ctx context.Context) string {
	v, _ := ctx.Value(ProfileIDKey).(string)
	return v
}

// WithProfileID кладёт id профиля в контекст (для тестов и фоновых задач).
func WithProfileID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ProfileIDKey, id)
}
