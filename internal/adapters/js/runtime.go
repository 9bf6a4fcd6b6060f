package js

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
)

// chunkRegistry is the global array chunks push themselves onto.
const chunkRegistry = `globalThis["packChunk"]`

// runtimeHelpers holds the bootstrap code of each optional runtime helper.
var runtimeHelpers = []struct {
	name string
	code string
}{
	{domain.RuntimeMakeNamespace, `__pack_require__.r = (exports) => {
  if (typeof Symbol !== "undefined" && Symbol.toStringTag) {
    Object.defineProperty(exports, Symbol.toStringTag, { value: "Module" });
  }
  Object.defineProperty(exports, "__esModule", { value: true });
};`},
	{domain.RuntimeDefineGetters, `__pack_require__.d = (exports, definition) => {
  for (const key in definition) {
    if (!Object.prototype.hasOwnProperty.call(exports, key)) {
      Object.defineProperty(exports, key, { enumerable: true, get: definition[key] });
    }
  }
};`},
	{domain.RuntimeModuleCache, `__pack_require__.c = __pack_module_cache__;`},
	{domain.RuntimeRequireResolveWeak, `__pack_require__.w = (moduleId) => {
  if (!Object.prototype.hasOwnProperty.call(__pack_modules__, moduleId)) {
    throw new Error("Module '" + moduleId + "' is not available");
  }
  return moduleId;
};`},
	{domain.RuntimeEnsureChunk, `__pack_require__.e = (chunkIds) => Promise.all(chunkIds.map((chunkId) => {
  const installed = __pack_installed_chunks__[chunkId];
  if (installed === 0) return undefined;
  if (installed) return installed[2];
  const promise = new Promise((resolve, reject) => {
    __pack_installed_chunks__[chunkId] = [resolve, reject];
  });
  __pack_installed_chunks__[chunkId][2] = promise;
  const script = document.createElement("script");
  script.src = __pack_chunk_base__ + __pack_chunk_files__[chunkId];
  script.onerror = () => {
    const pending = __pack_installed_chunks__[chunkId];
    if (pending !== 0) {
      __pack_installed_chunks__[chunkId] = undefined;
      pending[1](new Error("Loading chunk " + chunkId + " failed"));
    }
  };
  document.head.appendChild(script);
  return promise;
}));`},
	{domain.RuntimeOnChunksLoaded, `const __pack_deferred__ = [];
__pack_require__.O = (chunkIds, fn) => {
  if (chunkIds) {
    __pack_deferred__.push([chunkIds, fn]);
  }
  for (let i = 0; i < __pack_deferred__.length; i++) {
    const [ids, run] = __pack_deferred__[i];
    if (ids.every((id) => __pack_installed_chunks__[id] === 0)) {
      __pack_deferred__.splice(i--, 1);
      run();
    }
  }
};`},
}

const requireFunction = `const __pack_module_cache__ = {};
function __pack_require__(moduleId) {
  const cached = __pack_module_cache__[moduleId];
  if (cached !== undefined) return cached.exports;
  const factory = __pack_modules__[moduleId];
  if (factory === undefined) throw new Error("Cannot find module '" + moduleId + "'");
  const module = (__pack_module_cache__[moduleId] = { id: moduleId, exports: {} });
  factory(module, module.exports, __pack_require__);
  return module.exports;
}`

const chunkLoader = `const __pack_chunk_base__ = (() => {
  const script = typeof document !== "undefined" && document.currentScript;
  return script && script.src ? script.src.slice(0, script.src.lastIndexOf("/") + 1) : "";
})();
const __pack_install_chunk__ = ([chunkIds, modules, run]) => {
  for (const id in modules) __pack_modules__[id] = modules[id];
  for (const chunkId of chunkIds) {
    const installed = __pack_installed_chunks__[chunkId];
    __pack_installed_chunks__[chunkId] = 0;
    if (installed) installed[0]();
  }
  if (run) run(__pack_require__);
  if (__pack_require__.O) __pack_require__.O();
};
const __pack_registry__ = (` + chunkRegistry + ` = ` + chunkRegistry + ` || []);
__pack_registry__.forEach(__pack_install_chunk__);
__pack_registry__.push = __pack_install_chunk__;`

// RenderChunk produces the asset content of one chunk. Chunks that host the
// runtime are wrapped in the bootstrap, the others register their modules on
// the global chunk registry.
func (g *Generator) RenderChunk(ctx context.Context, in domain.ChunkRenderInput) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var b strings.Builder
	if len(in.Runtime) == 0 {
		fmt.Fprintf(&b, "(%s = %s || []).push([[%s], {\n", chunkRegistry, chunkRegistry, strconv.Quote(in.ChunkID))
		writeModules(&b, in.Modules)
		b.WriteString("}")
		if len(in.EntryModules) > 0 {
			b.WriteString(", (__pack_require__) => {\n")
			writeEntries(&b, in, "  ")
			b.WriteString("}")
		}
		b.WriteString("]);\n")
		return []byte(b.String()), nil
	}

	b.WriteString("(() => {\n")
	b.WriteString("const __pack_modules__ = {\n")
	writeModules(&b, in.Modules)
	b.WriteString("};\n")
	b.WriteString(requireFunction + "\n")

	if in.ChunkFiles == nil {
		in.ChunkFiles = map[string]string{}
	}
	files, err := json.Marshal(in.ChunkFiles)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&b, "const __pack_chunk_files__ = %s;\n", files)
	fmt.Fprintf(&b, "const __pack_installed_chunks__ = { %s: 0 };\n", strconv.Quote(in.ChunkID))

	for _, h := range runtimeHelpers {
		if slices.Contains(in.Runtime, h.name) {
			b.WriteString(h.code + "\n")
		}
	}
	b.WriteString(chunkLoader + "\n")
	writeEntries(&b, in, "")
	b.WriteString("})();\n")
	return []byte(b.String()), nil
}

func writeModules(b *strings.Builder, modules []domain.RenderedModule) {
	for _, m := range modules {
		fmt.Fprintf(b, "%s: (module, %s, %s) => {\n", strconv.Quote(m.ID), exportsVar, domain.RuntimeRequire)
		b.Write(m.Code)
		b.WriteString("\n},\n")
	}
}

func writeEntries(b *strings.Builder, in domain.ChunkRenderInput, indent string) {
	if len(in.EntryModules) == 0 {
		return
	}
	if len(in.EntryDependencies) == 0 {
		for _, id := range in.EntryModules {
			fmt.Fprintf(b, "%s%s(%s);\n", indent, domain.RuntimeRequire, strconv.Quote(id))
		}
		return
	}
	deps := make([]string, len(in.EntryDependencies))
	for i, d := range in.EntryDependencies {
		deps[i] = strconv.Quote(d)
	}
	fmt.Fprintf(b, "%s%s([%s], () => {\n", indent, domain.RuntimeOnChunksLoaded, strings.Join(deps, ", "))
	for _, id := range in.EntryModules {
		fmt.Fprintf(b, "%s  %s(%s);\n", indent, domain.RuntimeRequire, strconv.Quote(id))
	}
	fmt.Fprintf(b, "%s});\n", indent)
}
