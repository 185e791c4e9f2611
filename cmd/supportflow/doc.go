// Command supportflow runs the support question answering service.
//
//	supportflow serve                        start the HTTP server
//	supportflow serve --config config.yaml   with a config file
//	supportflow migrate up                   apply database migrations
//	supportflow health                       probe a running server
//	supportflow version                      print build information
package main
