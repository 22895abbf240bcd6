/*
Copyright 2022

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package eod

import (
	"fmt"
	"time"
)

// Hook receives lifecycle callbacks during the sync. Implementations feed
// downstream systems (screeners, notifiers) without entangling them with
// the sync loop.
type Hook interface {
	OnRecordUpdated(symbol string, row Row)
	OnCycleComplete(date time.Time)
	OnError(err error)
}

// NopHook is the default when no hook is configured.
type NopHook struct{}

func (NopHook) OnRecordUpdated(string, Row) {}
func (NopHook) OnCycleComplete(time.Time)   {}
func (NopHook) OnError(error)               {}

var hookFactories = map[string]func() Hook{}

// RegisterHook makes a hook constructable by name from configuration.
// Typically called from an implementation's init.
func RegisterHook(name string, factory func() Hook) {
	hookFactories[name] = factory
}

// HookByName builds the configured hook; the empty name selects NopHook.
func HookByName(name string) (Hook, error) {
	if name == "" {
		return NopHook{}, nil
	}
	factory, ok := hookFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown hook %q", name)
	}
	return factory(), nil
}
