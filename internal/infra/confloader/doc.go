// Package confloader loads confmesh configuration files.
//
// Sources are layered with koanf, later sources overriding earlier ones:
//
//  1. Values already present in the target struct (defaults)
//  2. The YAML configuration file
//  3. Environment variables (CONFMESH_SECTION_KEY)
//
// A Watcher built on fsnotify reports edits to the configuration file so
// callers can reload hot-reloadable settings.
package confloader
