package asha

import "github.com/google/uuid"

// ASHA GATT UUIDs, bit-exact per spec §6, copied verbatim from
// original_source/src/ASHA.rs (ASHA_UUID/ROPC_UUID/ACPC_UUID/ASTC_UUID/
// VOLC_UUID/PSMC_UUID). Parsed once into uuid.UUID values so binder/peer
// code can compare parsed characteristic UUIDs directly instead of doing
// case-insensitive string work on every bind.
var (
	ServiceUUID            = uuid.MustParse("0000FDF0-0000-1000-8000-00805F9B34FB")
	ReadOnlyPropertiesUUID = uuid.MustParse("6333651E-C481-4A3E-9169-7C902AAD37BB") // ROPC
	AudioControlPointUUID  = uuid.MustParse("F0D4DE7E-4A88-476C-9D9F-1937B0996CC0") // ACPC
	AudioStatusPointUUID   = uuid.MustParse("38663F1A-E711-4CAC-B641-326B56404837") // ASTC
	VolumeUUID             = uuid.MustParse("00E4CA9E-AB14-41E4-8823-F9E70C7E91DF") // VOLC
	LEPSMUUID              = uuid.MustParse("2D410339-82B6-42AA-B34E-E2E01DF8CC1A") // PSMC
)

// requiredCharacteristics lists the five ASHA characteristics a bindable
// service must expose, used to build the "all five present" check in
// PeripheralBinder.
var requiredCharacteristics = []uuid.UUID{
	ReadOnlyPropertiesUUID,
	AudioControlPointUUID,
	AudioStatusPointUUID,
	VolumeUUID,
	LEPSMUUID,
}
