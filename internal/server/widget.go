package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var static embed.FS

func widgetHandler() http.Handler {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}
