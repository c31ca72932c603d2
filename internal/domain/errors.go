package domain

import "errors"

var ErrProbeFailed = errors.New("could not probe media duration")
