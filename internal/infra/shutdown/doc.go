// Package shutdown runs named cleanup hooks when the process is asked to
// stop.
//
// Hooks run in reverse registration order under one shared deadline, so
// a component registered after its dependencies stops before them:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("peer server", peerServer.Shutdown)
//	h.OnShutdown("chat server", chatServer.Shutdown)
//	err := h.Wait(ctx) // chat server stops first
package shutdown
