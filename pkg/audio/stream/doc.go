// ABOUTME: Stream package providing byte sources for decoders
// ABOUTME: Memory, file and progressively downloaded streams behind one cursor contract
// Package stream provides the byte sources decoders read from.
//
// A Stream hands out independent Cursors. Cursors are io.ReadSeekers that can
// also answer ReadyReadData(n): whether n more bytes are available right now.
// Decoders check it before consuming data so a download that has not caught up
// yet yields audio.WaitData instead of a corrupt read.
//
//	online := stream.NewOnlineStream()
//	go io.Copy(online, resp.Body) // fill as bytes arrive
//	...
//	online.SetComplete()
package stream
