// Package confmesh is the public entry point of the configuration manager.
//
// Open builds a ready-to-use Instance from a YAML file and CONFMESH_
// environment variables:
//
//	inst, err := confmesh.Open("/etc/app/confmesh.yaml", confmesh.WithWatch())
//	if err != nil {
//		return err
//	}
//	defer inst.Close()
//
//	inst.SetI32("app.timeout", 30)
//
// Callers that need full control construct a Manager with NewManager and
// install a Backend themselves.
package confmesh
