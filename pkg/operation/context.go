// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package operation

import (
	"github.com/open-source-firmware/sedmgr/pkg/credential"
	"github.com/open-source-firmware/sedmgr/pkg/registry"
	"github.com/open-source-firmware/sedmgr/pkg/sedutil"
)

// credContext binds one authenticating credential to the calling
// convention it requires. Every command issued through a context uses the
// same convention.
type credContext struct {
	cred string
	iv   sedutil.Invoker
}

func newContext(dev *registry.Device, cred credential.Credential) *credContext {
	conv := sedutil.ConventionDerived
	if credential.IsFactory(cred, dev.MSID) {
		conv = sedutil.ConventionFactory
	}
	return &credContext{cred: string(cred), iv: dev.Invoker(conv)}
}

// factoryContext authenticates with the drive's MSID.
func factoryContext(dev *registry.Device) *credContext {
	return newContext(dev, credential.Credential(dev.MSID))
}

// psidContext authenticates with the printed PSID, which the tool always
// takes as-is.
func psidContext(dev *registry.Device, psid string) *credContext {
	return &credContext{cred: psid, iv: dev.Invoker(sedutil.ConventionFactory)}
}

func (c *credContext) factory() bool {
	return c.iv.Convention == sedutil.ConventionFactory
}
