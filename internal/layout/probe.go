package layout

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"cffigen/internal/ctypes"
)

// probeScalars is the fixed set of scalar classes measured by the target
// probe, in a stable order.
var probeScalars = []ctypes.ScalarClass{
	ctypes.ScalarBool,
	ctypes.ScalarChar,
	ctypes.ScalarSChar,
	ctypes.ScalarUChar,
	ctypes.ScalarShort,
	ctypes.ScalarUShort,
	ctypes.ScalarInt,
	ctypes.ScalarUInt,
	ctypes.ScalarLong,
	ctypes.ScalarULong,
	ctypes.ScalarLongLong,
	ctypes.ScalarULongLong,
	ctypes.ScalarFloat,
	ctypes.ScalarDouble,
	ctypes.ScalarLongDouble,
}

func probeHeader(includes []string) string {
	var sb strings.Builder
	sb.WriteString("/* generated layout probe */\n")
	sb.WriteString("#include <stddef.h>\n")
	sb.WriteString("#include <stdio.h>\n")
	for _, inc := range includes {
		if strings.HasPrefix(inc, "<") {
			fmt.Fprintf(&sb, "#include %s\n", inc)
		} else {
			fmt.Fprintf(&sb, "#include %q\n", inc)
		}
	}
	sb.WriteString("\nint main(void) {\n")
	return sb.String()
}

// TargetProbeSource builds the one-per-run probe measuring every scalar
// class, pointer properties and byte order.
func TargetProbeSource(includes []string) string {
	var sb strings.Builder
	sb.WriteString(probeHeader(includes))
	for _, c := range probeScalars {
		fmt.Fprintf(&sb,
			"\tprintf(\"scalar %d %%zu %%zu\\n\", (size_t)sizeof(%s), (size_t)_Alignof(%s));\n",
			c, c.CName(), c.CName())
	}
	sb.WriteString("\tprintf(\"pointer %zu %zu\\n\", (size_t)sizeof(void *), (size_t)_Alignof(void *));\n")
	sb.WriteString("\t{\n\t\tunsigned int one = 1;\n")
	sb.WriteString("\t\tprintf(\"endian %s\\n\", *(unsigned char *)&one ? \"little\" : \"big\");\n\t}\n")
	sb.WriteString("\treturn 0;\n}\n")
	return sb.String()
}

// TypeProbeSource builds the probe for one aggregate or enum: its total
// size and alignment, plus per-field offset and size for aggregates.
// Bit-field and unnamed members are skipped; offsetof cannot address them.
func TypeProbeSource(types *ctypes.Interner, id ctypes.TypeID, includes []string) (string, error) {
	spelling, err := types.CSpelling(id)
	if err != nil {
		return "", err
	}
	t, _ := types.Lookup(id)

	var sb strings.Builder
	sb.WriteString(probeHeader(includes))
	fmt.Fprintf(&sb,
		"\tprintf(\"type %%zu %%zu\\n\", (size_t)sizeof(%s), (size_t)_Alignof(%s));\n",
		spelling, spelling)

	if t.Kind == ctypes.KindStruct || t.Kind == ctypes.KindUnion {
		info, _ := types.StructInfo(id)
		for _, f := range info.Fields {
			if f.Name == "" || f.Bits > 0 {
				continue
			}
			fmt.Fprintf(&sb,
				"\tprintf(\"field %s %%zu %%zu\\n\", (size_t)offsetof(%s, %s), (size_t)sizeof(((%s *)0)->%s));\n",
				f.Name, spelling, f.Name, spelling, f.Name)
		}
	}
	sb.WriteString("\treturn 0;\n}\n")
	return sb.String(), nil
}

// parseTypeProbe turns probe stdout back into a TypeLayout. The field list
// from the type model supplies TypeIDs and bit widths; measured offsets are
// matched to fields by name.
func parseTypeProbe(types *ctypes.Interner, id ctypes.TypeID, stdout string) (TypeLayout, error) {
	var out TypeLayout
	offsets := make(map[string][2]int)
	sawType := false

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "type":
			if len(parts) != 3 {
				return out, fmt.Errorf("malformed type line %q", line)
			}
			size, err := parseCount(parts[1])
			if err != nil {
				return out, err
			}
			align, err := parseCount(parts[2])
			if err != nil {
				return out, err
			}
			out.Size, out.Align = size, align
			sawType = true
		case "field":
			if len(parts) != 4 {
				return out, fmt.Errorf("malformed field line %q", line)
			}
			offset, err := parseCount(parts[2])
			if err != nil {
				return out, err
			}
			size, err := parseCount(parts[3])
			if err != nil {
				return out, err
			}
			offsets[parts[1]] = [2]int{offset, size}
		default:
			return out, fmt.Errorf("unexpected probe line %q", line)
		}
	}
	if !sawType {
		return out, fmt.Errorf("probe output carried no type line")
	}

	if info, ok := types.StructInfo(id); ok {
		for _, f := range info.Fields {
			fl := FieldLayout{Name: f.Name, Type: f.Type, Offset: -1, Bits: f.Bits}
			if m, ok := offsets[f.Name]; ok {
				fl.Offset, fl.Size = m[0], m[1]
			}
			out.Fields = append(out.Fields, fl)
		}
	}
	return out, nil
}

// parseTargetProbe turns the scalar probe stdout into a Target.
func parseTargetProbe(stdout string) (Target, error) {
	target := Target{Scalars: make(map[ctypes.ScalarClass]ScalarLayout, len(probeScalars))}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "scalar":
			if len(parts) != 4 {
				return target, fmt.Errorf("malformed scalar line %q", line)
			}
			class, err := parseCount(parts[1])
			if err != nil {
				return target, err
			}
			size, err := parseCount(parts[2])
			if err != nil {
				return target, err
			}
			align, err := parseCount(parts[3])
			if err != nil {
				return target, err
			}
			cls, err := safecast.Conv[uint8](class)
			if err != nil {
				return target, fmt.Errorf("scalar class out of range in %q", line)
			}
			target.Scalars[ctypes.ScalarClass(cls)] = ScalarLayout{Size: size, Align: align}
		case "pointer":
			if len(parts) != 3 {
				return target, fmt.Errorf("malformed pointer line %q", line)
			}
			size, err := parseCount(parts[1])
			if err != nil {
				return target, err
			}
			align, err := parseCount(parts[2])
			if err != nil {
				return target, err
			}
			target.PtrSize, target.PtrAlign = size, align
		case "endian":
			if len(parts) != 2 {
				return target, fmt.Errorf("malformed endian line %q", line)
			}
			target.LittleEndian = parts[1] == "little"
		default:
			return target, fmt.Errorf("unexpected probe line %q", line)
		}
	}
	if target.PtrSize == 0 {
		return target, fmt.Errorf("target probe carried no pointer line")
	}
	return target, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing probe number %q: %w", s, err)
	}
	v, err := safecast.Conv[int](n)
	if err != nil {
		return 0, fmt.Errorf("probe number %q overflows: %w", s, err)
	}
	return v, nil
}
