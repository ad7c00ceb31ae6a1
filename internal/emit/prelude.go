package emit

import "fmt"

// FileHeader renders the import line and library constant every output file
// starts with.
func FileHeader(lib string) string {
	return fmt.Sprintf("import { CFunction, CCallback } from './quickjs-ffi.js';\nconst LIB = %q;\n", lib)
}

// Prelude is the shared runtime every output file (or the bundle) carries
// once. It holds the four helpers emitted code calls into:
//
//	_cffi_struct     backing ArrayBuffer + DataView accessors per field
//	_cffi_func       CFunction wrapper with per-argument marshaling
//	_cffi_callback   CCallback trampoline for function-pointer arguments
//	_cffi_variadic   variadic call requiring pre-marshaled extra arguments
//	_cffi_unavailable declared-but-unavailable stub that throws on use
//
// Field accessors honor the probed byte order and pointer width captured in
// _cffi_target, which the emitter writes right after the prelude.
const Prelude = `
const _cffi_marshal = (spec, arg) => {
    if (typeof spec === 'string') {
        return arg;
    }
    if (spec.cb) {
        return _cffi_callback(spec.cb, arg);
    }
    if (spec.struct) {
        return arg && arg.$buffer !== undefined ? arg.$buffer : arg;
    }
    return arg;
};

const _cffi_tokens = (specs) =>
    specs.map(s => (typeof s === 'string' ? s : 'pointer'));

const _cffi_func = (lib, name, ret, args) => {
    const c_func = new CFunction(lib, name, null, ret, ..._cffi_tokens(args));
    return (...js_args) => {
        const c_args = args.map((spec, i) => _cffi_marshal(spec, js_args[i]));
        return c_func.invoke(...c_args);
    };
};

const _cffi_callback = (specs, js_func) => {
    const c_cb = new CCallback(js_func, null, ..._cffi_tokens(specs));
    return c_cb.cfuncptr;
};

const _cffi_variadic = (lib, name, ret, fixed) => {
    return (extra_tokens, ...js_args) => {
        const tokens = [..._cffi_tokens(fixed), ...extra_tokens];
        const c_func = new CFunction(lib, name, fixed.length, ret, ...tokens);
        const c_args = js_args.map((arg, i) =>
            i < fixed.length ? _cffi_marshal(fixed[i], arg) : arg);
        return c_func.invoke(...c_args);
    };
};

const _cffi_view = {
    int: (dv, off) => [() => dv.getInt32(off, _cffi_target.le), v => dv.setInt32(off, v, _cffi_target.le)],
    uint: (dv, off) => [() => dv.getUint32(off, _cffi_target.le), v => dv.setUint32(off, v, _cffi_target.le)],
    sint8: (dv, off) => [() => dv.getInt8(off), v => dv.setInt8(off, v)],
    uint8: (dv, off) => [() => dv.getUint8(off), v => dv.setUint8(off, v)],
    char: (dv, off) => [() => dv.getInt8(off), v => dv.setInt8(off, v)],
    schar: (dv, off) => [() => dv.getInt8(off), v => dv.setInt8(off, v)],
    uchar: (dv, off) => [() => dv.getUint8(off), v => dv.setUint8(off, v)],
    short: (dv, off) => [() => dv.getInt16(off, _cffi_target.le), v => dv.setInt16(off, v, _cffi_target.le)],
    ushort: (dv, off) => [() => dv.getUint16(off, _cffi_target.le), v => dv.setUint16(off, v, _cffi_target.le)],
    sint16: (dv, off) => [() => dv.getInt16(off, _cffi_target.le), v => dv.setInt16(off, v, _cffi_target.le)],
    uint16: (dv, off) => [() => dv.getUint16(off, _cffi_target.le), v => dv.setUint16(off, v, _cffi_target.le)],
    sint32: (dv, off) => [() => dv.getInt32(off, _cffi_target.le), v => dv.setInt32(off, v, _cffi_target.le)],
    uint32: (dv, off) => [() => dv.getUint32(off, _cffi_target.le), v => dv.setUint32(off, v, _cffi_target.le)],
    sint64: (dv, off) => [() => dv.getBigInt64(off, _cffi_target.le), v => dv.setBigInt64(off, BigInt(v), _cffi_target.le)],
    uint64: (dv, off) => [() => dv.getBigUint64(off, _cffi_target.le), v => dv.setBigUint64(off, BigInt(v), _cffi_target.le)],
    long: (dv, off) => _cffi_target.longSize === 8 ? _cffi_view.sint64(dv, off) : _cffi_view.sint32(dv, off),
    ulong: (dv, off) => _cffi_target.longSize === 8 ? _cffi_view.uint64(dv, off) : _cffi_view.uint32(dv, off),
    float: (dv, off) => [() => dv.getFloat32(off, _cffi_target.le), v => dv.setFloat32(off, v, _cffi_target.le)],
    double: (dv, off) => [() => dv.getFloat64(off, _cffi_target.le), v => dv.setFloat64(off, v, _cffi_target.le)],
    pointer: (dv, off) => _cffi_target.ptrSize === 8 ? _cffi_view.uint64(dv, off) : _cffi_view.uint32(dv, off),
    string: (dv, off) => _cffi_view.pointer(dv, off),
};

const _cffi_struct = (name, size, align) => {
    const type = (base, byteOffset = 0) => {
        const buf = base instanceof ArrayBuffer ? base : new ArrayBuffer(size);
        const dv = new DataView(buf);
        const obj = { $buffer: buf, $offset: byteOffset, $name: name };
        for (const [field, spec] of Object.entries(type.$fields)) {
            if (spec.offset === undefined || spec.offset < 0) {
                continue; // bit-field members carry no addressable offset
            }
            if (spec.struct) {
                let nested;
                Object.defineProperty(obj, field, {
                    get: () => nested ??= spec.struct(buf, byteOffset + spec.offset),
                });
                continue;
            }
            const view = _cffi_view[spec.token];
            if (!view) continue;
            const [get, set] = view(dv, byteOffset + spec.offset);
            Object.defineProperty(obj, field, { get, set });
        }
        return obj;
    };
    type.$name = name;
    type.$size = size;
    type.$align = align;
    type.$fields = {};
    type.$define = (fields) => { type.$fields = fields; return type; };
    return type;
};

const _cffi_unavailable = (name, reason) => {
    const stub = () => { throw new Error(name + ' is unavailable: ' + reason); };
    stub.$unavailable = reason;
    return stub;
};
`

// TargetLine renders the probed ABI facts the prelude's accessors read.
func TargetLine(ptrSize, longSize int, littleEndian bool) string {
	return fmt.Sprintf("const _cffi_target = { ptrSize: %d, longSize: %d, le: %v };\n",
		ptrSize, longSize, littleEndian)
}
