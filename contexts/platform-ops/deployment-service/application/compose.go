package application

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	domainerrors "basehub/contexts/platform-ops/deployment-service/domain/errors"
	"basehub/contexts/platform-ops/deployment-service/ports"
)

// ApplyToCompose rewrites published host ports in a docker-compose document
// according to the remap table. Container ports are never touched, services
// absent from the table pass through untouched, and applying an already
// remapped file changes nothing. Port ranges are left alone and reported as
// warnings.
func ApplyToCompose(composeIn []byte, table ports.RemapTable) ([]byte, []string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(composeIn, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidCompose, err)
	}
	root := documentRoot(&doc)
	if root == nil {
		return nil, nil, domainerrors.ErrInvalidCompose
	}

	var warnings []string
	services := mappingValue(root, "services")
	if services != nil {
		for i := 0; i+1 < len(services.Content); i += 2 {
			name := services.Content[i].Value
			mapping, ok := table.Mapping(name)
			if !ok {
				continue
			}
			portsNode := mappingValue(services.Content[i+1], "ports")
			if portsNode == nil || portsNode.Kind != yaml.SequenceNode {
				continue
			}
			for _, entry := range portsNode.Content {
				warning := remapPortEntry(entry, name, mapping)
				if warning != "" {
					warnings = append(warnings, warning)
				}
			}
		}
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidCompose, err)
	}
	return out, warnings, nil
}

// Diff reports every service in the compose document whose published host
// port disagrees with the remap table.
func Diff(composeIn []byte, table ports.RemapTable) ([]ports.RemapDiff, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(composeIn, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidCompose, err)
	}
	root := documentRoot(&doc)
	if root == nil {
		return nil, domainerrors.ErrInvalidCompose
	}

	var diffs []ports.RemapDiff
	services := mappingValue(root, "services")
	if services == nil {
		return diffs, nil
	}
	for i := 0; i+1 < len(services.Content); i += 2 {
		name := services.Content[i].Value
		mapping, ok := table.Mapping(name)
		if !ok {
			continue
		}
		portsNode := mappingValue(services.Content[i+1], "ports")
		if portsNode == nil || portsNode.Kind != yaml.SequenceNode {
			continue
		}
		for _, entry := range portsNode.Content {
			published, ok := publishedPort(entry)
			if !ok {
				continue
			}
			if published == mapping.OriginalPort && published != mapping.NewPort {
				diffs = append(diffs, ports.RemapDiff{
					Service:  name,
					WantPort: mapping.NewPort,
					GotPort:  published,
				})
			}
		}
	}
	return diffs, nil
}

// remapPortEntry rewrites one ports entry in place. Returns a warning string
// for entries it deliberately skips.
func remapPortEntry(entry *yaml.Node, service string, mapping ports.PortMapping) string {
	switch entry.Kind {
	case yaml.ScalarNode:
		rewritten, skipped := remapShortSyntax(entry.Value, mapping)
		if skipped {
			return fmt.Sprintf("%s: port range %q left unmodified", service, entry.Value)
		}
		if rewritten != entry.Value {
			entry.Value = rewritten
			entry.Style = yaml.DoubleQuotedStyle
			entry.Tag = "!!str"
		}
	case yaml.MappingNode:
		published := mappingValue(entry, "published")
		if published == nil {
			return ""
		}
		if strings.Contains(published.Value, "-") {
			return fmt.Sprintf("%s: port range %q left unmodified", service, published.Value)
		}
		if port, err := strconv.Atoi(published.Value); err == nil && port == mapping.OriginalPort {
			published.Value = strconv.Itoa(mapping.NewPort)
		}
	}
	return ""
}

// remapShortSyntax handles "8080:8080", "127.0.0.1:8080:8080" and the
// "/protocol" suffix. The second return reports a skipped port range.
func remapShortSyntax(value string, mapping ports.PortMapping) (string, bool) {
	spec := value
	protocol := ""
	if idx := strings.Index(spec, "/"); idx >= 0 {
		protocol = spec[idx:]
		spec = spec[:idx]
	}

	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		// Container-port-only entries publish an ephemeral host port.
		return value, false
	}

	hostIdx := len(parts) - 2
	host := parts[hostIdx]
	if strings.Contains(host, "-") {
		return value, true
	}
	port, err := strconv.Atoi(host)
	if err != nil || port != mapping.OriginalPort {
		return value, false
	}

	parts[hostIdx] = strconv.Itoa(mapping.NewPort)
	return strings.Join(parts, ":") + protocol, false
}

func publishedPort(entry *yaml.Node) (int, bool) {
	switch entry.Kind {
	case yaml.ScalarNode:
		spec := entry.Value
		if idx := strings.Index(spec, "/"); idx >= 0 {
			spec = spec[:idx]
		}
		parts := strings.Split(spec, ":")
		if len(parts) < 2 {
			return 0, false
		}
		port, err := strconv.Atoi(parts[len(parts)-2])
		if err != nil {
			return 0, false
		}
		return port, true
	case yaml.MappingNode:
		published := mappingValue(entry, "published")
		if published == nil {
			return 0, false
		}
		port, err := strconv.Atoi(published.Value)
		if err != nil {
			return 0, false
		}
		return port, true
	}
	return 0, false
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	return root
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
