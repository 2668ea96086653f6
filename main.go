package main

import "github.com/avelichko/triplink/cmd/server"

func main() {
	server.NewServer().Run()
}
