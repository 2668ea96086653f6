package handlers

import "errors"

// ErrUnsupportedMediaType — заявленное расширение картинки/баннера
// не входит в allow-list; запрос отклоняется до записи в базу
var ErrUnsupportedMediaType = errors.New("unsupported media type")
