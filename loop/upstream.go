package loop

// SetupUpstream links two handles as a transparent-proxy pair
// (SPEC_FULL.md's channel-façade supplement, grounded on
// original_source/include/aru/components/evpp/TcpServer.hpp's upstream
// piping): closing either side cascades to close the other, and Pump
// wires each side's read callback to write straight into the other.
func SetupUpstream(a, b *Handle) {
	a.upstream = b
	b.upstream = a
}

// Pump links a and b via SetupUpstream and installs read callbacks on
// both so bytes read from one side are written unmodified to the other,
// implementing the io_setup_upstream pass-through behavior.
func Pump(a, b *Handle) {
	SetupUpstream(a, b)
	a.onRead = func(h *Handle, data []byte) {
		if h.upstream != nil {
			_, _ = h.upstream.Write(data)
		}
	}
	b.onRead = func(h *Handle, data []byte) {
		if h.upstream != nil {
			_, _ = h.upstream.Write(data)
		}
	}
}
