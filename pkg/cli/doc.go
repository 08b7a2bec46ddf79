/*
Package cli turns a populated registry into a station binary.

A leaf station declares its suites and hands the registry to Main:

	func main() {
		reg := registry.New()
		reg.Suite("rf").Case("tx%d", measureTX).Iterate("tx", registry.FromConfig("tx_channels"))
		cli.Main(reg)
	}

The resulting binary offers "run" and "list". Run loads the cascaded
configuration, picks a feedback channel (scripted answers, JSON lines with
--headless, the state tree when only the relay is attached, or the terminal)
and optionally serves the HTTP relay (--listen) and mirrors state, locks the
station and stores reports through Redis (--redis).
*/
package cli
