package normalizer

import (
	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// LinkRule declares a cross-reference: every identifier found under Path
// becomes a link filling Attribute from TargetAttribute of the target.
type LinkRule struct {
	Path            string
	Attribute       string
	TargetType      domain.ResourceType
	TargetAttribute string
}

type Mapping struct {
	NamePaths  []string
	ScopePaths []string
	NameFunc   func(fields map[string]any) string
	Rules      []Rule
	Links      []LinkRule
}

type Table map[domain.ResourceType]Mapping

func storageLink(path string) LinkRule {
	return LinkRule{
		Path:            path,
		Attribute:       domain.AttrStorageBytes,
		TargetType:      domain.ResourceBlockVolume,
		TargetAttribute: domain.AttrStorageBytes,
	}
}

func awsTagName(fields map[string]any) string {
	tags, _ := fields["Tags"].([]any)
	for _, t := range tags {
		tag, _ := t.(map[string]any)
		if key, _ := tag["Key"].(string); key == "Name" {
			if v, _ := tag["Value"].(string); v != "" {
				return v
			}
		}
	}
	return ""
}

var awsTable = Table{
	domain.ResourceComputeInstance: {
		NameFunc:   awsTagName,
		ScopePaths: []string{"Region"},
		Rules: []Rule{
			Product(domain.AttrCPUUnits, "CpuOptions.CoreCount", "CpuOptions.ThreadsPerCore"),
			Class(domain.AttrSizeClass, "InstanceType"),
			Present(domain.AttrPublicIP, "PublicIpAddress"),
			Equals(domain.AttrInUse, "State.Name", "running"),
		},
		Links: []LinkRule{storageLink("BlockDeviceMappings[].Ebs.VolumeId")},
	},
	domain.ResourceBlockVolume: {
		NameFunc:   awsTagName,
		ScopePaths: []string{"Region"},
		Rules: []Rule{
			GiB(domain.AttrStorageBytes, "Size"),
			Equals(domain.AttrInUse, "State", "in-use"),
			Class(domain.AttrSizeClass, "VolumeType"),
		},
	},
	domain.ResourceDiskSnapshot: {
		NameFunc:   awsTagName,
		ScopePaths: []string{"Region"},
		Rules:      []Rule{GiB(domain.AttrStorageBytes, "VolumeSize")},
	},
	domain.ResourceImage: {
		NamePaths:  []string{"Name"},
		ScopePaths: []string{"Region"},
		Rules:      []Rule{GiB(domain.AttrStorageBytes, "BlockDeviceMappings[].Ebs.VolumeSize")},
	},
	domain.ResourceReservedAddress: {
		NamePaths:  []string{"PublicIp"},
		ScopePaths: []string{"Region"},
		Rules: []Rule{
			Const(domain.AttrPublicIP, true),
			Present(domain.AttrInUse, "AssociationId"),
		},
	},
	domain.ResourceDatabaseCluster: {
		NamePaths:  []string{"DBInstanceIdentifier"},
		ScopePaths: []string{"Region"},
		Rules: []Rule{
			GiB(domain.AttrStorageBytes, "AllocatedStorage"),
			Class(domain.AttrSizeClass, "DBInstanceClass"),
			Const(domain.AttrNodeCount, one),
		},
	},
	domain.ResourceObjectBucket: {
		NamePaths:  []string{"Name"},
		ScopePaths: []string{"Region"},
	},
}

var azureTable = Table{
	domain.ResourceComputeInstance: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"location"},
		Rules:      []Rule{Class(domain.AttrSizeClass, "properties.hardwareProfile.vmSize")},
		Links: []LinkRule{
			storageLink("properties.storageProfile.osDisk.managedDisk.id"),
			storageLink("properties.storageProfile.dataDisks[].managedDisk.id"),
		},
	},
	domain.ResourceBlockVolume: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"location"},
		Rules: []Rule{
			Bytes(domain.AttrStorageBytes, "properties.diskSizeBytes"),
			GiB(domain.AttrStorageBytes, "properties.diskSizeGB"),
			Equals(domain.AttrInUse, "properties.diskState", "Attached"),
			Class(domain.AttrSizeClass, "sku.name"),
		},
	},
	domain.ResourceDiskSnapshot: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"location"},
		Rules: []Rule{
			Bytes(domain.AttrStorageBytes, "properties.diskSizeBytes"),
			GiB(domain.AttrStorageBytes, "properties.diskSizeGB"),
		},
	},
	domain.ResourceImage: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"location"},
		Rules: []Rule{
			GiB(domain.AttrStorageBytes,
				"properties.storageProfile.osDisk.diskSizeGB",
				"properties.storageProfile.dataDisks[].diskSizeGB"),
		},
	},
	domain.ResourceReservedAddress: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"location"},
		Rules: []Rule{
			Const(domain.AttrPublicIP, true),
			Present(domain.AttrInUse, "properties.ipConfiguration.id"),
			Class(domain.AttrSizeClass, "sku.name"),
		},
	},
	domain.ResourceLoadBalancer: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"location"},
		Rules:      []Rule{Class(domain.AttrSizeClass, "sku.name")},
	},
	domain.ResourceDNSZone: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"location"},
	},
	domain.ResourceRegistry: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"location"},
		Rules:      []Rule{Class(domain.AttrSizeClass, "sku.name")},
	},
}

var databricksTable = Table{
	domain.ResourceAnalyticsCluster: {
		NamePaths: []string{"cluster_name"},
		Rules: []Rule{
			CountPlus(domain.AttrNodeCount, 1, "num_workers"),
			Class(domain.AttrSizeClass, "node_type_id"),
			Equals(domain.AttrInUse, "state", "RUNNING", "RESIZING"),
		},
	},
	domain.ResourceSQLWarehouse: {
		NamePaths: []string{"name"},
		Rules: []Rule{
			Count(domain.AttrNodeCount, "num_clusters"),
			Class(domain.AttrSizeClass, "cluster_size"),
			Equals(domain.AttrInUse, "state", "RUNNING"),
		},
	},
}

var snowflakeTable = Table{
	domain.ResourceSQLWarehouse: {
		NamePaths: []string{"name"},
		Rules: []Rule{
			Count(domain.AttrNodeCount, "started_clusters"),
			Class(domain.AttrSizeClass, "size"),
			Equals(domain.AttrInUse, "state", "STARTED", "RESUMING"),
		},
	},
	domain.ResourceDatabaseStorage: {
		NamePaths: []string{"database_name"},
		Rules:     []Rule{Bytes(domain.AttrStorageBytes, "average_database_bytes", "average_failsafe_bytes")},
	},
}

var yandexTable = Table{
	domain.ResourceComputeInstance: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"folderId"},
		Rules: []Rule{
			Count(domain.AttrCPUUnits, "resources.cores"),
			Bytes(domain.AttrMemoryBytes, "resources.memory"),
			Present(domain.AttrPublicIP, "networkInterfaces[].primaryV4Address.oneToOneNat.address"),
			Equals(domain.AttrInUse, "status", "RUNNING"),
			Class(domain.AttrSizeClass, "platformId"),
		},
		Links: []LinkRule{
			storageLink("bootDisk.diskId"),
			storageLink("secondaryDisks[].diskId"),
		},
	},
	domain.ResourceBlockVolume: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"folderId"},
		Rules: []Rule{
			Bytes(domain.AttrStorageBytes, "size"),
			Present(domain.AttrInUse, "instanceIds[]"),
			Class(domain.AttrSizeClass, "typeId"),
		},
	},
	domain.ResourceDiskSnapshot: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"folderId"},
		Rules:      []Rule{Bytes(domain.AttrStorageBytes, "storageSize")},
	},
	domain.ResourceImage: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"folderId"},
		Rules:      []Rule{Bytes(domain.AttrStorageBytes, "storageSize")},
	},
	domain.ResourceReservedAddress: {
		NamePaths:  []string{"name", "externalIpv4Address.address"},
		ScopePaths: []string{"folderId"},
		Rules: []Rule{
			Present(domain.AttrPublicIP, "externalIpv4Address.address"),
			FlagOr(domain.AttrInUse, false, "used"),
		},
	},
	domain.ResourceDatabaseCluster: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"folderId"},
		Rules: []Rule{
			Bytes(domain.AttrStorageBytes, "config.resources.diskSize"),
			Class(domain.AttrSizeClass, "config.resources.resourcePresetId"),
			Const(domain.AttrNodeCount, one),
		},
	},
	domain.ResourceQueueCluster: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"folderId"},
		Rules: []Rule{
			Count(domain.AttrNodeCount, "config.brokersCount"),
			Bytes(domain.AttrStorageBytes, "config.kafka.resources.diskSize"),
			Class(domain.AttrSizeClass, "config.kafka.resources.resourcePresetId"),
		},
	},
	domain.ResourceDNSZone: {
		NamePaths:  []string{"name", "zone"},
		ScopePaths: []string{"folderId"},
	},
	domain.ResourceLoadBalancer: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"folderId"},
		Rules:      []Rule{Class(domain.AttrSizeClass, "type")},
	},
	domain.ResourceRegistry: {
		NamePaths:  []string{"name"},
		ScopePaths: []string{"folderId"},
	},
}

// DefaultTables holds the built-in mappings per provider.
func DefaultTables() map[domain.ProviderKind]Table {
	return map[domain.ProviderKind]Table{
		domain.ProviderAWS:        awsTable,
		domain.ProviderAzure:      azureTable,
		domain.ProviderDatabricks: databricksTable,
		domain.ProviderSnowflake:  snowflakeTable,
		domain.ProviderYandex:     yandexTable,
	}
}
