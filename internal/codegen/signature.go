package codegen

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"rtlgen/internal/ir"
)

// PortDirection is the side of a module port as seen from outside.
type PortDirection int

const (
	DirectionInput PortDirection = iota
	DirectionOutput
)

func (d PortDirection) String() string {
	if d == DirectionOutput {
		return "OUTPUT"
	}
	return "INPUT"
}

// SignaturePort is one entry of the module port table.
type SignaturePort struct {
	Direction PortDirection
	Name      string
	Width     int64
}

// ModuleSignature describes the boundary of an emitted module: the data
// ports with their flat widths, plus clock, reset, and pipeline metadata.
type ModuleSignature struct {
	ModuleName string
	Ports      []SignaturePort
	ClockName  string
	ResetName  string
	Latency    int64
}

// GenerateSignature builds the signature of a converted block. Data ports
// come from the block's port list; clock and reset come from the names the
// conversion recorded on the block.
func GenerateSignature(block *ir.Block, latency int64) ModuleSignature {
	sig := ModuleSignature{
		ModuleName: block.Name(),
		ClockName:  block.ClockName(),
		ResetName:  block.ResetName(),
		Latency:    latency,
	}
	for _, p := range block.Ports() {
		dir := DirectionInput
		if p.Direction == ir.PortOutput {
			dir = DirectionOutput
		}
		sig.Ports = append(sig.Ports, SignaturePort{
			Direction: dir,
			Name:      p.Name,
			Width:     p.Type.FlatBitCount(),
		})
	}
	return sig
}

// Wire format field numbers. ModuleSignature: ports=1, module_name=2,
// clock_name=3, reset_name=4, latency=5. Port: direction=1, name=2, width=3.
const (
	sigFieldPorts      = 1
	sigFieldModuleName = 2
	sigFieldClockName  = 3
	sigFieldResetName  = 4
	sigFieldLatency    = 5

	portFieldDirection = 1
	portFieldName      = 2
	portFieldWidth     = 3
)

func marshalPort(p SignaturePort) []byte {
	var b []byte
	if p.Direction != DirectionInput {
		b = protowire.AppendTag(b, portFieldDirection, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Direction))
	}
	if p.Name != "" {
		b = protowire.AppendTag(b, portFieldName, protowire.BytesType)
		b = protowire.AppendString(b, p.Name)
	}
	if p.Width != 0 {
		b = protowire.AppendTag(b, portFieldWidth, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Width))
	}
	return b
}

// Marshal serializes the signature to its wire format.
func (s ModuleSignature) Marshal() []byte {
	var b []byte
	for _, p := range s.Ports {
		b = protowire.AppendTag(b, sigFieldPorts, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalPort(p))
	}
	if s.ModuleName != "" {
		b = protowire.AppendTag(b, sigFieldModuleName, protowire.BytesType)
		b = protowire.AppendString(b, s.ModuleName)
	}
	if s.ClockName != "" {
		b = protowire.AppendTag(b, sigFieldClockName, protowire.BytesType)
		b = protowire.AppendString(b, s.ClockName)
	}
	if s.ResetName != "" {
		b = protowire.AppendTag(b, sigFieldResetName, protowire.BytesType)
		b = protowire.AppendString(b, s.ResetName)
	}
	if s.Latency != 0 {
		b = protowire.AppendTag(b, sigFieldLatency, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.Latency))
	}
	return b
}

func unmarshalPort(b []byte) (SignaturePort, error) {
	var p SignaturePort
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == portFieldDirection && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.Direction = PortDirection(v)
			b = b[n:]
		case num == portFieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.Name = v
			b = b[n:]
		case num == portFieldWidth && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			p.Width = int64(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return p, nil
}

// UnmarshalSignature parses a wire-format signature. Unknown fields are
// skipped so readers stay compatible with extended writers.
func UnmarshalSignature(b []byte) (ModuleSignature, error) {
	var s ModuleSignature
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, fmt.Errorf("module signature: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == sigFieldPorts && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return s, fmt.Errorf("module signature: %w", protowire.ParseError(n))
			}
			p, err := unmarshalPort(v)
			if err != nil {
				return s, fmt.Errorf("module signature port %d: %w", len(s.Ports), err)
			}
			s.Ports = append(s.Ports, p)
			b = b[n:]
		case num == sigFieldModuleName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return s, fmt.Errorf("module signature: %w", protowire.ParseError(n))
			}
			s.ModuleName = v
			b = b[n:]
		case num == sigFieldClockName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return s, fmt.Errorf("module signature: %w", protowire.ParseError(n))
			}
			s.ClockName = v
			b = b[n:]
		case num == sigFieldResetName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return s, fmt.Errorf("module signature: %w", protowire.ParseError(n))
			}
			s.ResetName = v
			b = b[n:]
		case num == sigFieldLatency && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return s, fmt.Errorf("module signature: %w", protowire.ParseError(n))
			}
			s.Latency = int64(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return s, fmt.Errorf("module signature: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return s, nil
}
