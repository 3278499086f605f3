// ABOUTME: Netstream package carrying audio from remote clients into the engine
// ABOUTME: Documents the websocket push protocol flow
// Package netstream lets remote programs play audio on a skyaudio engine.
//
// A client connects to the websocket path, exchanges client/hello and
// server/hello, then sends push/start naming a decoder format. Binary frames
// carry the file bytes, which the server appends to an OnlineStream while
// the emitter already plays whatever has arrived. push/end marks the stream
// complete; the server reports emitter events back as push/state messages.
package netstream
