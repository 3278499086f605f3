// ABOUTME: Engine package tying streams, decoders and output sources together
// ABOUTME: Exposes emitters with play, pause, seek, fade, pitch and 3D controls
// Package engine is the application-facing audio context.
//
// An Engine owns one output backend. Each Emitter pulls bytes from a stream,
// decodes them and uploads one buffer at a time to its sound source. Emitter
// updates run from the driver refill (UpdateDriver), from a fixed-rate
// goroutine (UpdateThreaded) or from Engine.Update (UpdateManual).
//
//	e := engine.New(engine.Config{Driver: "oto"})
//	if err := e.Init(); err != nil {
//		log.Fatal(err)
//	}
//	defer e.Shutdown()
//
//	em := e.CreateEmitterFromFile("music.ogg", false)
//	em.SetLoop(true)
//	em.Play()
package engine
