package main

import (
	"github.com/chatme-app/chatme/internal/server"
)

func main() {
	s := server.New()
	s.Start(s.Cfg.Addr)
}
