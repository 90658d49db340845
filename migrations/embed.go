// Package migrations предоставляет встроенные SQL-миграции для Postgres-хранилища консоли.
package migrations

import "embed"

// Files содержит все .sql файлы из этой директории (применяются по имени: 001, 002, ...).
//go:embed *.sql
var Files embed.FS
