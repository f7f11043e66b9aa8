package walletconnect

import (
	"fungily.io/fungily-score/pkg/log"
	"sync"
)

// PairingDisplay is a QRCodeModal that keeps the current pairing QR so a
// front-end can fetch it. Closing it dismisses the QR.
type PairingDisplay struct {
	mu  sync.RWMutex
	uri string
	png []byte
}

var _ QRCodeModal = (*PairingDisplay)(nil)

func NewPairingDisplay() *PairingDisplay {
	return &PairingDisplay{}
}

func (d *PairingDisplay) Open(uri string, png []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uri, d.png = uri, append([]byte{}, png...)
	log.Infof("wallet connect - pairing qr code ready")
	return nil
}

func (d *PairingDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uri != "" {
		log.Debug("wallet connect - pairing qr code dismissed")
	}
	d.uri, d.png = "", nil
}

// Current returns the open pairing, if any.
func (d *PairingDisplay) Current() (uri string, png []byte, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.uri == "" {
		return "", nil, false
	}
	return d.uri, append([]byte{}, d.png...), true
}
