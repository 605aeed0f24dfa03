package handlers

import "errors"

var errMissingQueryParam = errors.New(`missing required query parameter "q"`)
