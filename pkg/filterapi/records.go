package filterapi

// FilterRecord is the shared parameter block passed to the plug-in entry point on every
// selector call. Field order, sizes and alignment follow the classic SDK header; all
// callback and table members are raw addresses.
// Size: 544 bytes of defined fields + reserved tail.
type FilterRecord struct {
	SerialNumber int32   // 0
	AbortProc    uintptr // 8
	ProgressProc uintptr // 16
	Parameters   Handle  // 24

	ImageSize  Point    // 32
	Planes     int16    // 36
	FilterRect Rect     // 38
	Background RGBColor // 46
	Foreground RGBColor // 52

	MaxSpace    int32 // 60
	BufferSpace int32 // 64

	InRect    Rect  // 68
	InLoPlane int16 // 76
	InHiPlane int16 // 78

	OutRect    Rect  // 80
	OutLoPlane int16 // 88
	OutHiPlane int16 // 90

	InData      uintptr // 96
	InRowBytes  int32   // 104
	OutData     uintptr // 112
	OutRowBytes int32   // 120

	IsFloating   Boolean // 124
	HaveMask     Boolean // 125
	AutoMask     Boolean // 126
	MaskRect     Rect    // 128
	MaskData     uintptr // 136
	MaskRowBytes int32   // 144

	BackColor FilterColor // 148
	ForeColor FilterColor // 152

	HostSig  OSType  // 156
	HostProc uintptr // 160

	ImageMode  ImageMode     // 168
	ImageHRes  Fixed         // 172
	ImageVRes  Fixed         // 176
	FloatCoord Point         // 180
	WholeSize  Point         // 184
	Monitor    PlugInMonitor // 188

	PlatformData  uintptr // 232
	BufferProcs   uintptr // 240
	ResourceProcs uintptr // 248
	ProcessEvent  uintptr // 256
	DisplayPixels uintptr // 264
	HandleProcs   uintptr // 272

	SupportsDummyChannels    Boolean    // 280
	SupportsAlternateLayouts Boolean    // 281
	WantLayout               int16      // 282
	FilterCase               FilterCase // 284
	DummyPlaneValue          int16      // 286
	PremiereHook             uintptr    // 288
	AdvanceState             uintptr    // 296

	SupportsAbsolute    Boolean // 304
	WantsAbsolute       Boolean // 305
	GetPropertyObsolete uintptr // 312
	CannotUndo          Boolean // 320
	SupportsPadding     Boolean // 321
	InputPadding        int16   // 322
	OutputPadding       int16   // 324
	MaskPadding         int16   // 326
	SamplingSupport     int8    // 328
	ReservedByte        int8    // 329
	InputRate           Fixed   // 332
	MaskRate            Fixed   // 336
	ColorServices       uintptr // 344

	InLayerPlanes         int16 // 352
	InTransparencyMask    int16
	InLayerMasks          int16
	InInvertedLayerMasks  int16
	InNonLayerPlanes      int16
	OutLayerPlanes        int16
	OutTransparencyMask   int16
	OutLayerMasks         int16
	OutInvertedLayerMasks int16
	OutNonLayerPlanes     int16
	AbsLayerPlanes        int16
	AbsTransparencyMask   int16
	AbsLayerMasks         int16
	AbsInvertedLayerMasks int16
	AbsNonLayerPlanes     int16
	InPreDummyPlanes      int16
	InPostDummyPlanes     int16
	OutPreDummyPlanes     int16
	OutPostDummyPlanes    int16 // 388

	InColumnBytes      int32   // 392
	InPlaneBytes       int32   // 396
	OutColumnBytes     int32   // 400
	OutPlaneBytes      int32   // 404
	ImageServicesProcs uintptr // 408
	PropertyProcs      uintptr // 416

	InTileHeight   int16 // 424
	InTileWidth    int16
	InTileOrigin   Point
	AbsTileHeight  int16 // 432
	AbsTileWidth   int16
	AbsTileOrigin  Point
	OutTileHeight  int16 // 440
	OutTileWidth   int16
	OutTileOrigin  Point
	MaskTileHeight int16 // 448
	MaskTileWidth  int16
	MaskTileOrigin Point

	DescriptorParameters uintptr // 456
	ErrorString          uintptr // 464
	ChannelPortProcs     uintptr // 472
	DocumentInfo         uintptr // 480
	SSPBasic             uintptr // 488
	PlugInRef            uintptr // 496
	Depth                int32   // 504
	ICCProfileData       Handle  // 512
	ICCProfileSize       int32   // 520
	CanUseICCProfiles    int32   // 524
	HasImageScrap        int32   // 528
	BigDocumentData      uintptr // 536

	Reserved [256]byte
}

// AboutRecord is passed with the About selector.
type AboutRecord struct {
	PlatformData uintptr
	SSPBasic     uintptr
	PlugInRef    uintptr
	Reserved     [244]byte
}

// BufferProcs is the classic buffer callback table.
type BufferProcs struct {
	Version  int16
	NumProcs int16
	Allocate uintptr // OSErr (int32 size, BufferID *id)
	Lock     uintptr // Ptr (BufferID id, Boolean moveHigh)
	Unlock   uintptr // void (BufferID id)
	Free     uintptr // void (BufferID id)
	Space    uintptr // int32 (void)
}

const (
	BufferProcsVersion = 2
	BufferProcsCount   = 5
)

// HandleProcs is the classic handle callback table.
type HandleProcs struct {
	Version        int16
	NumProcs       int16
	New            uintptr // Handle (int32 size)
	Dispose        uintptr // void (Handle h)
	GetSize        uintptr // int32 (Handle h)
	SetSize        uintptr // OSErr (Handle h, int32 size)
	Lock           uintptr // Ptr (Handle h, Boolean moveHigh)
	Unlock         uintptr // void (Handle h)
	RecoverSpace   uintptr // void (int32 size)
	DisposeRegular uintptr // void (Handle h)
}

const (
	HandleProcsVersion = 1
	HandleProcsCount   = 8
)

// ResourceProcs is the pseudo-resource callback table. Indices are 1-based.
type ResourceProcs struct {
	Version  int16
	NumProcs int16
	Count    uintptr // int16 (ResType type)
	Get      uintptr // Handle (ResType type, int16 index)
	Delete   uintptr // void (ResType type, int16 index)
	Add      uintptr // OSErr (ResType type, Handle data)
}

const (
	ResourceProcsVersion = 3
	ResourceProcsCount   = 4
)

// PropertyProcs is the property callback table.
type PropertyProcs struct {
	Version  int16
	NumProcs int16
	Get      uintptr // OSErr (PIType sig, PIType key, int32 index, intptr_t *simple, Handle *complex)
	Set      uintptr // OSErr (PIType sig, PIType key, int32 index, intptr_t simple, Handle complex)
}

const (
	PropertyProcsVersion = 1
	PropertyProcsCount   = 2
)

// DescriptorParameters links the scripting system into the filter record.
type DescriptorParameters struct {
	Version              int16
	PlayInfo             int16
	RecordInfo           int16
	Descriptor           Handle
	WriteDescriptorProcs uintptr
	ReadDescriptorProcs  uintptr
}

const DescriptorParametersVersion = 0

// ReadDescriptorProcs walks a descriptor handle key by key.
type ReadDescriptorProcs struct {
	Version            int16
	NumProcs           int16
	OpenRead           uintptr
	CloseRead          uintptr
	GetKey             uintptr
	GetInteger         uintptr
	GetFloat           uintptr
	GetUnitFloat       uintptr
	GetBoolean         uintptr
	GetText            uintptr
	GetAlias           uintptr
	GetEnumerated      uintptr
	GetClass           uintptr
	GetSimpleReference uintptr
	GetObject          uintptr
	GetCount           uintptr
	GetString          uintptr
	GetPinnedInteger   uintptr
	GetPinnedFloat     uintptr
	GetPinnedUnitFloat uintptr
}

const (
	ReadDescriptorProcsVersion = 0
	ReadDescriptorProcsCount   = 18
)

// WriteDescriptorProcs builds a descriptor handle key by key.
type WriteDescriptorProcs struct {
	Version            int16
	NumProcs           int16
	OpenWrite          uintptr
	CloseWrite         uintptr
	PutInteger         uintptr
	PutFloat           uintptr
	PutUnitFloat       uintptr
	PutBoolean         uintptr
	PutText            uintptr
	PutAlias           uintptr
	PutEnumerated      uintptr
	PutClass           uintptr
	PutSimpleReference uintptr
	PutObject          uintptr
	PutCount           uintptr
	PutString          uintptr
	PutScopedClass     uintptr
	PutScopedObject    uintptr
}

const (
	WriteDescriptorProcsVersion = 0
	WriteDescriptorProcsCount   = 16
)

// SimpleReference is the one-hop reference used by the classic descriptor procs.
// Layout: desiredClass (4) + keyForm (4) + name (256) + index (4) + type (4) + value (4) = 276 bytes
type SimpleReference struct {
	DesiredClass OSType
	KeyForm      OSType
	Name         Str255
	Index        int32
	Type         OSType
	Value        OSType
}

// ColorServicesInfo is the argument block of the colorServices callback.
// Layout: 56 bytes on 64-bit
type ColorServicesInfo struct {
	InfoSize                int32
	Selector                int16
	SourceSpace             int16
	ResultSpace             int16
	ResultGamutInfoValid    Boolean
	ResultInGamut           Boolean
	ReservedSourceSpaceInfo uintptr
	ReservedResultSpaceInfo uintptr
	ColorComponents         [4]int16
	Reserved                uintptr
	SelectorParameter       uintptr
}

// Color services selectors.
const (
	ColorServicesChooseColor     int16 = 0
	ColorServicesConvertColor    int16 = 1
	ColorServicesSamplePoint     int16 = 2
	ColorServicesGetSpecialColor int16 = 3
)

// ColorServicesChosenSpace as a result space means "the space the color was chosen in".
const ColorServicesChosenSpace int16 = -1

// Special colors for ColorServicesGetSpecialColor.
const (
	SpecialColorForeground int32 = 0
	SpecialColorBackground int32 = 1
)
