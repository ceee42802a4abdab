package repo

import "errors"

// ErrNotFound — запись не найдена в БД. Репозитории возвращают её
// вместо pgx.ErrNoRows, чтобы вызывающие не зависели от драйвера.
var ErrNotFound = errors.New("not found")
