package domain

import (
	"reflect"

	"github.com/shopspring/decimal"
)

type ResourceType string

const (
	ResourceComputeInstance  ResourceType = "compute_instance"
	ResourceBlockVolume      ResourceType = "block_volume"
	ResourceDiskSnapshot     ResourceType = "disk_snapshot"
	ResourceImage            ResourceType = "image"
	ResourceReservedAddress  ResourceType = "reserved_address"
	ResourceDatabaseCluster  ResourceType = "database_cluster"
	ResourceQueueCluster     ResourceType = "queue_cluster"
	ResourceDNSZone          ResourceType = "dns_zone"
	ResourceLoadBalancer     ResourceType = "load_balancer"
	ResourceRegistry         ResourceType = "registry"
	ResourceObjectBucket     ResourceType = "object_bucket"
	ResourceAnalyticsCluster ResourceType = "analytics_cluster"
	ResourceSQLWarehouse     ResourceType = "sql_warehouse"
	ResourceDatabaseStorage  ResourceType = "database_storage"
)

var ResourceTypes = []ResourceType{
	ResourceComputeInstance,
	ResourceBlockVolume,
	ResourceDiskSnapshot,
	ResourceImage,
	ResourceReservedAddress,
	ResourceDatabaseCluster,
	ResourceQueueCluster,
	ResourceDNSZone,
	ResourceLoadBalancer,
	ResourceRegistry,
	ResourceObjectBucket,
	ResourceAnalyticsCluster,
	ResourceSQLWarehouse,
	ResourceDatabaseStorage,
}

func (t ResourceType) Valid() bool {
	for _, known := range ResourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Canonical attribute keys.
const (
	AttrCPUUnits     = "cpu_units"
	AttrMemoryBytes  = "memory_bytes"
	AttrStorageBytes = "storage_bytes"
	AttrPublicIP     = "public_ip"
	AttrInUse        = "in_use"
	AttrNodeCount    = "node_count"
	AttrSizeClass    = "size_class"
)

// RawEntry is a provider-native record from one listing endpoint.
type RawEntry struct {
	ID     string
	Fields map[string]any
}

// Attributes holds normalized values: decimal.Decimal for quantities,
// bool for flags and string for classes.
type Attributes map[string]any

func (a Attributes) Decimal(key string) decimal.Decimal {
	if v, ok := a[key].(decimal.Decimal); ok {
		return v
	}
	return decimal.Zero
}

func (a Attributes) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

func (a Attributes) BoolOr(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

func (a Attributes) String(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Equal compares decimals by value and everything else structurally.
func (a Attributes) Equal(other Attributes) bool {
	if len(a) != len(other) {
		return false
	}
	for k, v := range a {
		ov, ok := other[k]
		if !ok {
			return false
		}
		vd, vIsDec := v.(decimal.Decimal)
		od, oIsDec := ov.(decimal.Decimal)
		switch {
		case vIsDec && oIsDec:
			if !vd.Equal(od) {
				return false
			}
		case vIsDec != oIsDec:
			return false
		default:
			if !reflect.DeepEqual(v, ov) {
				return false
			}
		}
	}
	return true
}

type LinkStatus string

const (
	LinkUnresolved LinkStatus = "unresolved"
	LinkResolved   LinkStatus = "resolved"
	LinkDangling   LinkStatus = "dangling"
)

// Link declares that Attribute is filled from TargetAttribute of the
// resource TargetID in the TargetType listing.
type Link struct {
	Attribute       string
	TargetType      ResourceType
	TargetID        string
	TargetAttribute string
	Status          LinkStatus
}

type ResourceKey struct {
	Type ResourceType
	ID   string
}

type Resource struct {
	ID         string
	Provider   ProviderKind
	Type       ResourceType
	Scope      string
	Name       string
	Attributes Attributes
	Extensions map[string]any
	Links      []Link
	Cost       CostLineItem
}

func (r Resource) Key() ResourceKey {
	return ResourceKey{Type: r.Type, ID: r.ID}
}

func (r Resource) Ref() ResourceRef {
	return ResourceRef{Type: r.Type, ID: r.ID, Name: r.Name}
}

func (r Resource) contentEqual(o Resource) bool {
	if r.ID != o.ID || r.Provider != o.Provider || r.Type != o.Type || r.Scope != o.Scope || r.Name != o.Name {
		return false
	}
	if !r.Attributes.Equal(o.Attributes) {
		return false
	}
	if !reflect.DeepEqual(r.Links, o.Links) {
		return false
	}
	return r.Cost.Equal(o.Cost)
}
