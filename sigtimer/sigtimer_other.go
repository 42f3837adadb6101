//go:build !linux

package sigtimer

import (
	"os"

	"github.com/pkg/errors"
)

func Lookup(name string) (os.Signal, error) {
	return nil, errors.WithMessagef(ErrUnsupportedPlatform, "%q", name)
}

// Facility 非 linux 平台上所有操作都失败, 注册会得到 intr.ErrRegistration.
type Facility struct{}

func New() *Facility {
	return &Facility{}
}

func (f *Facility) Install(sig os.Signal, deliver func(nowMs int64)) error {
	return ErrUnsupportedPlatform
}

func (f *Facility) Uninstall(sig os.Signal) error {
	return ErrUnsupportedPlatform
}

func (f *Facility) Arm(sig os.Signal, periodMs int64, periodic bool) error {
	return ErrUnsupportedPlatform
}

func (f *Facility) Disarm(sig os.Signal) error {
	return ErrUnsupportedPlatform
}
