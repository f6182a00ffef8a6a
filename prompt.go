package main

import (
	"errors"

	"github.com/golang/glog"
	"github.com/manifoldco/promptui"
)

// confirm asks a yes/no question on the terminal. Anything but an
// explicit yes counts as no.
func confirm(question string) bool {
	p := promptui.Prompt{
		Label:     question,
		IsConfirm: true,
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			glog.Infof("interrupted, answering no")
		}
		return false
	}
	return true
}
