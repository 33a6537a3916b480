// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sedutil

import (
	"strings"
)

// Convention selects how the tool treats the credential argument.
//
// The factory credential (MSID) is passed as-is. A derived credential is
// already hashed and needs the -t switch so the tool does not hash it again.
type Convention int

const (
	ConventionFactory Convention = iota
	ConventionDerived
)

func (c Convention) String() string {
	switch c {
	case ConventionFactory:
		return "factory"
	case ConventionDerived:
		return "derived"
	default:
		return "unknown"
	}
}

func (c Convention) switches() []string {
	if c == ConventionDerived {
		return []string{"-n", "-t"}
	}
	return []string{"-n"}
}

const redacted = "<redacted>"

// Command is one invocation of the tool. Secret arguments are remembered so
// they can be left out of logs.
type Command struct {
	Elevate bool
	Args    []string
	secret  map[int]bool
}

// Flag returns the first long option of the command, used as step name.
func (c Command) Flag() string {
	for _, a := range c.Args {
		if strings.HasPrefix(a, "--") {
			return strings.TrimPrefix(a, "--")
		}
	}
	return ""
}

// Redacted returns the arguments with every credential replaced.
func (c Command) Redacted() []string {
	out := make([]string, len(c.Args))
	for i, a := range c.Args {
		if c.secret[i] {
			out[i] = redacted
		} else {
			out[i] = a
		}
	}
	return out
}

func (c Command) String() string {
	return strings.Join(c.Redacted(), " ")
}

// builder assembles a Command while tracking which positions are secret.
type builder struct {
	cmd Command
}

func newCommand(elevate bool, switches ...string) *builder {
	return &builder{cmd: Command{Elevate: elevate, Args: append([]string{}, switches...), secret: map[int]bool{}}}
}

func (b *builder) arg(a ...string) *builder {
	b.cmd.Args = append(b.cmd.Args, a...)
	return b
}

func (b *builder) secretArg(a string) *builder {
	b.cmd.secret[len(b.cmd.Args)] = true
	b.cmd.Args = append(b.cmd.Args, a)
	return b
}

func (b *builder) build() Command {
	return b.cmd
}

// Scan lists all drives; "n" suppresses the interactive prompt.
func Scan(elevate bool) Command {
	return newCommand(elevate).arg("--scan", "n").build()
}

func Query(elevate bool, device string) Command {
	return newCommand(elevate).arg("--query", device).build()
}

func PrintDefaultPassword(elevate bool, device string) Command {
	return newCommand(elevate).arg("--printDefaultPassword", device).build()
}

// MBRSize reads the shadow MBR size authenticating with the MSID. It only
// succeeds while the MSID is still the active credential.
func MBRSize(elevate bool, msid, device string) Command {
	return newCommand(elevate, "-n").arg("--getmbrsize").secretArg(msid).arg(device).build()
}

// Invoker builds commands for a single device under one calling convention.
type Invoker struct {
	Elevate    bool
	Device     string
	Convention Convention
}

func (iv Invoker) cmd() *builder {
	return newCommand(iv.Elevate, iv.Convention.switches()...)
}

func (iv Invoker) InitialSetup(cred string) Command {
	return iv.cmd().arg("--initialSetup").secretArg(cred).arg(iv.Device).build()
}

// AuditWrite appends an audit record. entry is the two digit event code
// followed by a YYMMDDHHMMSS timestamp.
func (iv Invoker) AuditWrite(entry, cred string) Command {
	return iv.cmd().arg("--auditwrite", entry).secretArg(cred).arg("Admin1", iv.Device).build()
}

func (iv Invoker) AuditRead(cred, authority string) Command {
	return iv.cmd().arg("--auditread").secretArg(cred).arg(authority, iv.Device).build()
}

func (iv Invoker) EnableLockingRange(lockingRange, cred string) Command {
	return iv.cmd().arg("--enableLockingRange", lockingRange).secretArg(cred).arg(iv.Device).build()
}

func (iv Invoker) DisableLockingRange(lockingRange, cred string) Command {
	return iv.cmd().arg("--disableLockingRange", lockingRange).secretArg(cred).arg(iv.Device).build()
}

// SetLockingRange sets the range state, one of "LK", "RW" or "RO".
func (iv Invoker) SetLockingRange(lockingRange, state, cred string) Command {
	return iv.cmd().arg("--setLockingRange", lockingRange, state).secretArg(cred).arg(iv.Device).build()
}

func (iv Invoker) SetMBRDone(on bool, cred string) Command {
	return iv.cmd().arg("--setMBRDone", onOff(on)).secretArg(cred).arg(iv.Device).build()
}

func (iv Invoker) SetMBREnable(on bool, cred string) Command {
	return iv.cmd().arg("--setMBREnable", onOff(on)).secretArg(cred).arg(iv.Device).build()
}

func (iv Invoker) SetSIDPassword(oldCred, newCred string) Command {
	return iv.cmd().arg("--setSIDPassword").secretArg(oldCred).secretArg(newCred).arg(iv.Device).build()
}

func (iv Invoker) SetAdmin1Password(oldCred, newCred string) Command {
	return iv.cmd().arg("--setAdmin1Pwd").secretArg(oldCred).secretArg(newCred).arg(iv.Device).build()
}

func (iv Invoker) RevertTPer(cred string) Command {
	return iv.cmd().arg("--revertTPer").secretArg(cred).arg(iv.Device).build()
}

func (iv Invoker) RevertNoErase(cred string) Command {
	return iv.cmd().arg("--revertnoerase").secretArg(cred).arg(iv.Device).build()
}

// Activate activates the Locking SP, taking ownership with the given
// credential.
func (iv Invoker) Activate(cred string) Command {
	return iv.cmd().arg("--activate").secretArg(cred).arg(iv.Device).build()
}

func (iv Invoker) RevertPSID(psid string) Command {
	return iv.cmd().arg("--yesIreallywanttoERASEALLmydatausingthePSID").secretArg(psid).arg(iv.Device).build()
}

func (iv Invoker) PBAValid(cred string) Command {
	return iv.cmd().arg("--pbaValid").secretArg(cred).arg(iv.Device).build()
}

// LoadPBAImage writes the PBA image bundled with the tool; "n" suppresses
// the progress prompt.
func (iv Invoker) LoadPBAImage(cred string) Command {
	return iv.cmd().arg("--loadpbaimage").secretArg(cred).arg("n", iv.Device).build()
}

func (iv Invoker) EnableUser(cred, user string) Command {
	return iv.cmd().arg("--enableuser", "ON").secretArg(cred).arg(user, iv.Device).build()
}

func (iv Invoker) EnableUserRead(cred, user string) Command {
	return iv.cmd().arg("--enableuserread", "ON").secretArg(cred).arg(user, iv.Device).build()
}

func (iv Invoker) SetPassword(cred, user, userCred string) Command {
	return iv.cmd().arg("--setpassword").secretArg(cred).arg(user).secretArg(userCred).arg(iv.Device).build()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
