package object

// SignatureHeader is the commit header that carries a signature.
const SignatureHeader = "gpgsig"

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit: the commit serialized without its signature header.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.ExtraHeaders = nil
	for _, h := range c.ExtraHeaders {
		if h.Key != SignatureHeader {
			unsigned.ExtraHeaders = append(unsigned.ExtraHeaders, h)
		}
	}
	return MarshalCommit(&unsigned)
}

// SetSignature replaces any existing signature header on c with sig.
func (c *CommitObj) SetSignature(sig string) {
	kept := c.ExtraHeaders[:0:0]
	for _, h := range c.ExtraHeaders {
		if h.Key != SignatureHeader {
			kept = append(kept, h)
		}
	}
	if sig != "" {
		kept = append(kept, CommitHeader{Key: SignatureHeader, Value: sig})
	}
	c.ExtraHeaders = kept
}
