// ABOUTME: Version and product identification strings
// ABOUTME: Reported in push handshakes, mDNS records and the player header
package version

const (
	Version      = "0.3.0"
	Product      = "skyaudio"
	Manufacturer = "Skylicht"
)
